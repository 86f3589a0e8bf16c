package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// recordView is the JSON shape of a record; periods use the canonical
// MM.YYYY form.
type recordView struct {
	ID                int64    `json:"id"`
	Amount            string   `json:"amount"`
	ExpenseItem       string   `json:"expense_item"`
	ExpenseGroup      string   `json:"expense_group"`
	Partner           string   `json:"partner"`
	Comment           string   `json:"comment"`
	Period            []string `json:"period"`
	PaymentMethod     string   `json:"payment_method"`
	ApprovalsNeeded   int      `json:"approvals_needed"`
	ApprovalsReceived int      `json:"approvals_received"`
	Status            string   `json:"status"`
	ApprovedBy        []string `json:"approved_by"`
	InitiatorID       int64    `json:"initiator_id"`
}

func newRecordView(rec types.ExpenseRecord) recordView {
	periods := make([]string, len(rec.Period))
	for i, p := range rec.Period {
		periods[i] = p.String()
	}
	approvedBy := rec.ApprovedBy
	if approvedBy == nil {
		approvedBy = []string{}
	}
	return recordView{
		ID:                rec.ID,
		Amount:            rec.Amount.String(),
		ExpenseItem:       rec.ExpenseItem,
		ExpenseGroup:      rec.ExpenseGroup,
		Partner:           rec.Partner,
		Comment:           rec.Comment,
		Period:            periods,
		PaymentMethod:     string(rec.PaymentMethod),
		ApprovalsNeeded:   rec.ApprovalsNeeded,
		ApprovalsReceived: rec.ApprovalsReceived,
		Status:            string(rec.Status),
		ApprovedBy:        approvedBy,
		InitiatorID:       rec.InitiatorID,
	}
}
