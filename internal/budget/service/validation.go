package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

// ApprovalThreshold is the amount at and above which finance must approve
// after the department head.
var ApprovalThreshold = decimal.NewFromInt(50000)

// approvalsNeeded fixes the chain length at creation.
func approvalsNeeded(amount decimal.Decimal) int {
	if amount.GreaterThanOrEqual(ApprovalThreshold) {
		return 2
	}
	return 1
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("positive_amount", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true // required reports it
		}
		d, err := decimal.NewFromString(s)
		return err == nil && d.IsPositive()
	}); err != nil {
		panic(fmt.Sprintf("register positive_amount: %v", err))
	}
	return v
}

// parseSubmission validates raw fields and builds an unsaved record.
func parseSubmission(v *validator.Validate, initiator types.Actor, fields types.Submission) (types.ExpenseRecord, error) {
	fields = fields.Normalize()
	fields.Amount = strings.ReplaceAll(strings.ReplaceAll(fields.Amount, " ", ""), ",", ".")

	if err := v.Struct(fields); err != nil {
		var ves validator.ValidationErrors
		if errors.As(err, &ves) && len(ves) > 0 {
			return types.ExpenseRecord{}, toValidationError(ves[0])
		}
		return types.ExpenseRecord{}, fmt.Errorf("validate submission: %w", err)
	}

	amount, err := decimal.NewFromString(fields.Amount)
	if err != nil {
		return types.ExpenseRecord{}, &types.ValidationError{Field: "amount", Reason: err.Error()}
	}
	periods, err := types.ParsePeriods(fields.Period)
	if err != nil {
		return types.ExpenseRecord{}, &types.ValidationError{Field: "period", Reason: err.Error()}
	}
	method, err := types.ParsePaymentMethod(fields.PaymentMethod)
	if err != nil {
		return types.ExpenseRecord{}, &types.ValidationError{Field: "payment_method", Reason: err.Error()}
	}

	return types.ExpenseRecord{
		Amount:            amount,
		ExpenseItem:       fields.ExpenseItem,
		ExpenseGroup:      fields.ExpenseGroup,
		Partner:           fields.Partner,
		Comment:           fields.Comment,
		Period:            periods,
		PaymentMethod:     method,
		ApprovalsNeeded:   approvalsNeeded(amount),
		ApprovalsReceived: 0,
		Status:            types.StatusNotProcessed,
		ApprovedBy:        []string{},
		InitiatorID:       initiator.ID,
	}, nil
}

func toValidationError(fe validator.FieldError) *types.ValidationError {
	field := toSnakeCase(fe.Field())
	switch fe.Tag() {
	case "required":
		return &types.ValidationError{Field: field, Reason: "is required"}
	case "positive_amount":
		return &types.ValidationError{Field: field, Reason: "must be a positive number"}
	default:
		return &types.ValidationError{Field: field, Reason: "failed " + fe.Tag()}
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
