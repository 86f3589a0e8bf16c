package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusNotProcessed Status = "Not processed"
	StatusPending      Status = "Pending"
	StatusApproved     Status = "Approved"
	StatusPaid         Status = "Paid"
	StatusRejected     Status = "Rejected"
)

var validStatuses = map[Status]bool{
	StatusNotProcessed: true,
	StatusPending:      true,
	StatusApproved:     true,
	StatusPaid:         true,
	StatusRejected:     true,
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusRejected
}

func (s Status) IsValid() bool {
	return validStatuses[s]
}

func (s Status) String() string { return string(s) }

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentNoncash PaymentMethod = "noncash"
	PaymentCrypto  PaymentMethod = "crypto"
)

// paymentAliases accepts the labels initiators actually type in chat.
var paymentAliases = map[string]PaymentMethod{
	"cash":     PaymentCash,
	"нал":      PaymentCash,
	"noncash":  PaymentNoncash,
	"non-cash": PaymentNoncash,
	"безнал":   PaymentNoncash,
	"crypto":   PaymentCrypto,
	"крипта":   PaymentCrypto,
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m, ok := paymentAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown payment method %q (want cash, noncash or crypto)", s)
	}
	return m, nil
}

// ExpenseRecord is the persisted approval request. ApprovedBy accumulates
// approver names in call order and is never shortened.
type ExpenseRecord struct {
	ID                int64           `json:"id"`
	Amount            decimal.Decimal `json:"amount"`
	ExpenseItem       string          `json:"expense_item"`
	ExpenseGroup      string          `json:"expense_group"`
	Partner           string          `json:"partner"`
	Comment           string          `json:"comment"`
	Period            []Period        `json:"period"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	ApprovalsNeeded   int             `json:"approvals_needed"`
	ApprovalsReceived int             `json:"approvals_received"`
	Status            Status          `json:"status"`
	ApprovedBy        []string        `json:"approved_by"`
	InitiatorID       int64           `json:"initiator_id"`
}

// Clone returns a copy that shares no slices with r.
func (r ExpenseRecord) Clone() ExpenseRecord {
	out := r
	if r.Period != nil {
		out.Period = append(make([]Period, 0, len(r.Period)), r.Period...)
	}
	if r.ApprovedBy != nil {
		out.ApprovedBy = append(make([]string, 0, len(r.ApprovedBy)), r.ApprovedBy...)
	}
	return out
}

// Summary renders the record fields block shown under every notification.
func (r ExpenseRecord) Summary() string {
	periods := make([]string, len(r.Period))
	for i, p := range r.Period {
		periods[i] = p.String()
	}
	var b strings.Builder
	b.WriteString("Expense details:\n")
	fmt.Fprintf(&b, "1. Amount: %s\n", r.Amount.String())
	fmt.Fprintf(&b, "2. Item: %q\n", r.ExpenseItem)
	fmt.Fprintf(&b, "3. Group: %q\n", r.ExpenseGroup)
	fmt.Fprintf(&b, "4. Partner: %q\n", r.Partner)
	fmt.Fprintf(&b, "5. Comment: %q\n", r.Comment)
	fmt.Fprintf(&b, "6. Accrual periods: %q\n", strings.Join(periods, ", "))
	fmt.Fprintf(&b, "7. Payment method: %q\n", string(r.PaymentMethod))
	return b.String()
}

// Actor identifies the chat user performing an action.
type Actor struct {
	ID       int64
	Nickname string
}

func (a Actor) Name() string {
	if a.Nickname != "" {
		return a.Nickname
	}
	return fmt.Sprintf("id%d", a.ID)
}
