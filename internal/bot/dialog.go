package bot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

type dialogStep int

const (
	stepAmount dialogStep = iota
	stepItem
	stepGroup
	stepPartner
	stepComment
	stepPeriod
	stepMethod
	stepConfirm
)

var stepPrompts = map[dialogStep]string{
	stepAmount:  "Enter the invoice amount:",
	stepItem:    "Enter the expense item:",
	stepGroup:   "Enter the expense group:",
	stepPartner: "Enter the partner:",
	stepComment: "Enter a comment for the payment:",
	stepPeriod:  "Enter the accrual periods as mm.yy separated by spaces (e.g. 08.24 09.24):",
	stepMethod:  "Enter the payment method (cash, noncash or crypto):",
}

type dialog struct {
	step dialogStep
	sub  types.Submission
}

// dialogs holds the in-progress /enter_record conversations, one per chat.
type dialogs struct {
	mu     sync.Mutex
	byChat map[int64]*dialog
}

func newDialogs() *dialogs {
	return &dialogs{byChat: make(map[int64]*dialog)}
}

func (d *dialogs) start(chatID int64) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byChat[chatID] = &dialog{step: stepAmount}
	return stepPrompts[stepAmount]
}

func (d *dialogs) stop(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byChat[chatID]
	delete(d.byChat, chatID)
	return ok
}

func (d *dialogs) active(chatID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.byChat[chatID]
	return ok
}

// dialogResult is what one answer produced: a reply to show, and a
// submission once the user confirmed.
type dialogResult struct {
	reply string
	done  *types.Submission
}

// advance feeds one answer into chatID's dialog.
func (d *dialogs) advance(chatID int64, text string) (dialogResult, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dl, ok := d.byChat[chatID]
	if !ok {
		return dialogResult{}, false
	}
	text = strings.TrimSpace(text)

	switch dl.step {
	case stepAmount:
		amount, err := decimal.NewFromString(strings.ReplaceAll(strings.ReplaceAll(text, " ", ""), ",", "."))
		if err != nil || !amount.IsPositive() {
			return dialogResult{reply: "Invalid amount. Try again.\n" + stepPrompts[stepAmount]}, true
		}
		dl.sub.Amount = amount.String()
	case stepItem:
		if text == "" {
			return dialogResult{reply: stepPrompts[stepItem]}, true
		}
		dl.sub.ExpenseItem = text
	case stepGroup:
		if text == "" {
			return dialogResult{reply: stepPrompts[stepGroup]}, true
		}
		dl.sub.ExpenseGroup = text
	case stepPartner:
		if text == "" {
			return dialogResult{reply: stepPrompts[stepPartner]}, true
		}
		dl.sub.Partner = text
	case stepComment:
		if text == "" || strings.Contains(text, ";") {
			return dialogResult{reply: "Invalid comment. Try again.\n" + stepPrompts[stepComment]}, true
		}
		dl.sub.Comment = text
	case stepPeriod:
		periods, err := types.ParsePeriods(text)
		if err != nil {
			return dialogResult{reply: "Invalid periods: " + err.Error() + "\n" + stepPrompts[stepPeriod]}, true
		}
		dl.sub.Period = types.FormatPeriods(periods)
	case stepMethod:
		m, err := types.ParsePaymentMethod(text)
		if err != nil {
			return dialogResult{reply: err.Error() + "\n" + stepPrompts[stepMethod]}, true
		}
		dl.sub.PaymentMethod = string(m)
	case stepConfirm:
		switch strings.ToLower(text) {
		case "yes", "y", "да":
			sub := dl.sub
			delete(d.byChat, chatID)
			return dialogResult{done: &sub}, true
		case "no", "n", "нет":
			delete(d.byChat, chatID)
			return dialogResult{reply: "Entry cancelled."}, true
		default:
			return dialogResult{reply: "Reply yes to submit or no to cancel."}, true
		}
	}

	dl.step++
	if dl.step == stepConfirm {
		return dialogResult{reply: confirmText(dl.sub)}, true
	}
	return dialogResult{reply: stepPrompts[dl.step]}, true
}

func confirmText(s types.Submission) string {
	return fmt.Sprintf("Please check the invoice:\n"+
		"1. Amount: %s\n2. Item: %s\n3. Group: %s\n4. Partner: %s\n"+
		"5. Comment: %s\n6. Accrual periods: %s\n7. Payment method: %s\n\n"+
		"Reply yes to submit or no to cancel.",
		s.Amount, s.ExpenseItem, s.ExpenseGroup, s.Partner, s.Comment, s.Period, s.PaymentMethod)
}
