package service

import (
	"fmt"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// checkEligible returns nil when role may perform action on rec.
func checkEligible(rec types.ExpenseRecord, role types.Department, action types.Action) error {
	if rec.Status.IsTerminal() {
		return &types.PermissionError{AlreadyProcessed: true}
	}

	st, n := rec.Status, rec.ApprovalsReceived
	fresh := st == types.StatusNotProcessed && n == 0

	switch action {
	case types.ActionApprove:
		switch role {
		case types.DepartmentHead:
			if fresh {
				return nil
			}
			return deny("head approval requires status %q with no approvals", types.StatusNotProcessed)
		case types.DepartmentFinance:
			if st == types.StatusPending && n == 1 {
				return nil
			}
			return deny("finance approval requires status %q with one approval", types.StatusPending)
		}
	case types.ActionReject:
		switch role {
		case types.DepartmentHead:
			if fresh || ((st == types.StatusPending || st == types.StatusApproved) && n == 1) {
				return nil
			}
			return deny("head cannot reject a record with %d approvals in status %q", n, st)
		case types.DepartmentFinance:
			if (st == types.StatusPending && n == 1) || (st == types.StatusApproved && n == 2) {
				return nil
			}
			return deny("finance cannot reject a record with %d approvals in status %q", n, st)
		}
	case types.ActionPay:
		if role == types.DepartmentPayment {
			if st == types.StatusApproved {
				return nil
			}
			return deny("payment requires status %q", types.StatusApproved)
		}
	}
	return deny("%s may not %s", role, action)
}

func deny(format string, args ...any) error {
	return &types.PermissionError{Condition: fmt.Sprintf(format, args...)}
}

// ResolveRole picks the first of roles that may perform action on rec.
// When none may, the error for the last role tried is returned.
func ResolveRole(rec types.ExpenseRecord, roles []types.Department, action types.Action) (types.Department, error) {
	if len(roles) == 0 {
		return "", deny("no department may %s", action)
	}
	var last error
	for _, role := range roles {
		err := checkEligible(rec, role, action)
		if err == nil {
			return role, nil
		}
		last = err
	}
	return "", last
}
