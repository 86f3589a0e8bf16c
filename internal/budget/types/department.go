package types

import "fmt"

// Department is a fixed position in the approval chain.
type Department string

const (
	DepartmentInitiator Department = "initiator"
	DepartmentHead      Department = "head"
	DepartmentFinance   Department = "finance"
	DepartmentPayment   Department = "payment"
)

// Departments lists the chain in order.
var Departments = []Department{
	DepartmentInitiator,
	DepartmentHead,
	DepartmentFinance,
	DepartmentPayment,
}

func ParseDepartment(s string) (Department, error) {
	for _, d := range Departments {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown department %q", s)
}

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionPay     Action = "pay"
	ActionSubmit  Action = "submit"
)

// Button is one inline control attached to a notification.
type Button struct {
	Text string
	Data string
}

// Keyboard is a transport-neutral set of inline controls, one button per row.
type Keyboard struct {
	Rows [][]Button
}

func ApprovalKeyboard(recordID int64, dept Department) *Keyboard {
	return &Keyboard{Rows: [][]Button{
		{{Text: "Approve", Data: ApprovalCallback(ActionApprove, dept, recordID)}},
		{{Text: "Reject", Data: ApprovalCallback(ActionReject, dept, recordID)}},
	}}
}

func PaymentKeyboard(recordID int64) *Keyboard {
	return &Keyboard{Rows: [][]Button{
		{{Text: "Paid", Data: PaymentCallback(recordID)}},
	}}
}

// Member is one chat user listed under a department in the roster.
type Member struct {
	ChatID   int64  `yaml:"chat_id" json:"chat_id"`
	Nickname string `yaml:"nickname" json:"nickname"`
}
