package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, d *dialogs, chatID int64, answers ...string) dialogResult {
	t.Helper()
	var res dialogResult
	for _, a := range answers {
		var ok bool
		res, ok = d.advance(chatID, a)
		require.True(t, ok, "no dialog for answer %q", a)
	}
	return res
}

func TestDialog_CompletesSubmission(t *testing.T) {
	d := newDialogs()
	assert.Equal(t, stepPrompts[stepAmount], d.start(7))

	res := feed(t, d, 7, "1 500,5", "Ads", "Marketing", "Acme", "banner", "08.24 9.2024", "Безнал")
	assert.Contains(t, res.reply, "Please check the invoice")
	assert.Contains(t, res.reply, "Accrual periods: 08.2024 09.2024")
	assert.Nil(t, res.done)

	res = feed(t, d, 7, "yes")
	require.NotNil(t, res.done)
	assert.Equal(t, "1500.5", res.done.Amount)
	assert.Equal(t, "Marketing", res.done.ExpenseGroup)
	assert.Equal(t, "noncash", res.done.PaymentMethod)
	assert.False(t, d.active(7))
}

func TestDialog_RepromptsOnInvalidAnswers(t *testing.T) {
	d := newDialogs()
	d.start(1)

	res := feed(t, d, 1, "-5")
	assert.Contains(t, res.reply, "Invalid amount")

	res = feed(t, d, 1, "100", "item", "group", "partner", "a;b")
	assert.Contains(t, res.reply, "Invalid comment")

	res = feed(t, d, 1, "ok", "13.24")
	assert.Contains(t, res.reply, "Invalid periods")

	res = feed(t, d, 1, "01.25", "barter")
	assert.Contains(t, res.reply, "unknown payment method")

	res = feed(t, d, 1, "cash", "maybe")
	assert.Equal(t, "Reply yes to submit or no to cancel.", res.reply)
	assert.True(t, d.active(1))
}

func TestDialog_DeclineAndStop(t *testing.T) {
	d := newDialogs()
	d.start(1)
	res := feed(t, d, 1, "100", "i", "g", "p", "c", "01.25", "cash", "no")
	assert.Equal(t, "Entry cancelled.", res.reply)
	assert.False(t, d.active(1))

	d.start(2)
	assert.True(t, d.stop(2))
	assert.False(t, d.stop(2))
	_, ok := d.advance(2, "100")
	assert.False(t, ok)
}

func TestDialog_ChatsAreIndependent(t *testing.T) {
	d := newDialogs()
	d.start(1)
	d.start(2)
	feed(t, d, 1, "100")
	res := feed(t, d, 2, "not a number")
	assert.Contains(t, res.reply, "Invalid amount")
	res = feed(t, d, 1, "item")
	assert.Equal(t, stepPrompts[stepGroup], res.reply)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc\n", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, parts)

	parts = splitMessage("абвгдеёжзийк", 5)
	assert.Equal(t, []string{"абвгд", "еёжзи", "йк"}, parts)
}

func TestSplitCommand(t *testing.T) {
	cmd, args := splitCommand("/Check@budget_bot  12 ")
	assert.Equal(t, "/check", cmd)
	assert.Equal(t, "12", args)

	cmd, args = splitCommand("hello")
	assert.Empty(t, cmd)
	assert.Equal(t, "hello", args)
}
