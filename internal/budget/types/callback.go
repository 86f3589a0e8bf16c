package types

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback is a decoded button payload.
type Callback struct {
	Action     Action
	Department Department
	RecordID   int64
}

func ApprovalCallback(action Action, dept Department, recordID int64) string {
	return fmt.Sprintf("approval_%s_%s_%d", action, dept, recordID)
}

func PaymentCallback(recordID int64) string {
	return fmt.Sprintf("payment_%d", recordID)
}

// ParseCallback decodes approval_{approve|reject}_{department}_{id} and
// payment_{id}. Payloads are strictly underscore delimited.
func ParseCallback(data string) (Callback, error) {
	parts := strings.Split(data, "_")
	bad := func(reason string) (Callback, error) {
		return Callback{}, &MalformedCallbackError{Payload: data, Reason: reason}
	}

	switch parts[0] {
	case "approval":
		if len(parts) != 4 {
			return bad(fmt.Sprintf("want 4 tokens, got %d", len(parts)))
		}
		action := Action(parts[1])
		if action != ActionApprove && action != ActionReject {
			return bad("unknown action " + parts[1])
		}
		dept, err := ParseDepartment(parts[2])
		if err != nil {
			return bad(err.Error())
		}
		id, err := parseRecordID(parts[3])
		if err != nil {
			return bad(err.Error())
		}
		return Callback{Action: action, Department: dept, RecordID: id}, nil
	case "payment":
		if len(parts) != 2 {
			return bad(fmt.Sprintf("want 2 tokens, got %d", len(parts)))
		}
		id, err := parseRecordID(parts[1])
		if err != nil {
			return bad(err.Error())
		}
		return Callback{Action: ActionPay, Department: DepartmentPayment, RecordID: id}, nil
	default:
		return bad("unknown prefix " + parts[0])
	}
}

func parseRecordID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad record id %q", s)
	}
	return id, nil
}
