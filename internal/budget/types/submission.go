package types

import (
	"fmt"
	"strings"
)

// Submission is the raw field set handed to the engine by the submit
// command or the entry dialog. Validation happens in the service layer.
type Submission struct {
	Amount        string `validate:"required,positive_amount"`
	ExpenseItem   string `validate:"required"`
	ExpenseGroup  string `validate:"required"`
	Partner       string `validate:"required"`
	Comment       string `validate:"required"`
	Period        string `validate:"required"`
	PaymentMethod string `validate:"required"`
}

// submissionFields is the order of the semicolon-delimited submit command.
var submissionFields = []string{
	"amount", "expense_item", "expense_group", "partner", "comment", "period", "payment_method",
}

// ParseSubmission splits "amount; item; group; partner; comment; period; method".
func ParseSubmission(line string) (Submission, error) {
	parts := strings.Split(line, ";")
	if len(parts) != len(submissionFields) {
		return Submission{}, &ValidationError{
			Field:  "fields",
			Reason: fmt.Sprintf("expected %d semicolon-separated fields (%s), got %d", len(submissionFields), strings.Join(submissionFields, "; "), len(parts)),
		}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return Submission{
		Amount:        parts[0],
		ExpenseItem:   parts[1],
		ExpenseGroup:  parts[2],
		Partner:       parts[3],
		Comment:       parts[4],
		Period:        parts[5],
		PaymentMethod: parts[6],
	}, nil
}

// Normalize trims surrounding whitespace from every field.
func (s Submission) Normalize() Submission {
	return Submission{
		Amount:        strings.TrimSpace(s.Amount),
		ExpenseItem:   strings.TrimSpace(s.ExpenseItem),
		ExpenseGroup:  strings.TrimSpace(s.ExpenseGroup),
		Partner:       strings.TrimSpace(s.Partner),
		Comment:       strings.TrimSpace(s.Comment),
		Period:        strings.TrimSpace(s.Period),
		PaymentMethod: strings.TrimSpace(s.PaymentMethod),
	}
}
