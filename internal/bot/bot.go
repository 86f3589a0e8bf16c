// Package bot routes chat commands and button presses into the approval
// workflow and turns its results into replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/service"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
	"github.com/BrandonDHaskell/budgetbot/internal/telegram"
)

// MaxMessageLen is the Bot API limit on message text.
const MaxMessageLen = 4096

type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, kb *types.Keyboard) (int64, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Workflow is the part of service.Engine the bot drives.
type Workflow interface {
	Submit(ctx context.Context, initiator types.Actor, fields types.Submission) (types.ExpenseRecord, error)
	Decide(ctx context.Context, id int64, role types.Department, action types.Action, actor types.Actor) (types.ExpenseRecord, error)
	Pay(ctx context.Context, id int64, actor types.Actor) (types.ExpenseRecord, error)
	Status(ctx context.Context, id int64) (types.ExpenseRecord, error)
	Unsettled(ctx context.Context) ([]types.ExpenseRecord, error)
	History(ctx context.Context, id int64) ([]store.TransitionEventRecord, error)
}

type Config struct {
	// DeveloperChatID receives internal error reports; 0 disables.
	DeveloperChatID int64
}

type Bot struct {
	wf      Workflow
	dir     *service.Directory
	msgr    Messenger
	dialogs *dialogs
	devChat int64
	log     *zap.Logger
}

func New(wf Workflow, dir *service.Directory, msgr Messenger, cfg Config, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{
		wf:      wf,
		dir:     dir,
		msgr:    msgr,
		dialogs: newDialogs(),
		devChat: cfg.DeveloperChatID,
		log:     log.Named("bot"),
	}
}

// HandleUpdate processes one update. It never returns an error: every
// failure is reported to the user and logged.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.Text != "":
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) actor(u *telegram.User, chatID int64) types.Actor {
	id := chatID
	if u != nil {
		id = u.ID
	}
	a := b.dir.Actor(id)
	if a.Nickname == "" && u != nil && u.Username != "" {
		a.Nickname = "@" + u.Username
	}
	return a
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	chatID := m.Chat.ID
	actor := b.actor(m.From, chatID)
	cmd, args := splitCommand(m.Text)

	if cmd == "/start" {
		b.reply(ctx, chatID, helpText(chatID))
		return
	}
	if !b.dir.Allowed(actor.ID) {
		b.log.Warn("access denied", zap.Int64("chat_id", chatID), zap.String("actor", actor.Name()))
		b.reply(ctx, chatID, "Sorry, you don't have access to this bot.")
		return
	}

	switch cmd {
	case "/submit_record":
		b.cmdSubmit(ctx, chatID, actor, args)
	case "/approve_record":
		b.cmdDecide(ctx, chatID, actor, types.ActionApprove, args)
	case "/reject_record":
		b.cmdDecide(ctx, chatID, actor, types.ActionReject, args)
	case "/check":
		b.cmdCheck(ctx, chatID, args)
	case "/show_not_paid":
		b.cmdShowNotPaid(ctx, chatID)
	case "/history":
		b.cmdHistory(ctx, chatID, args)
	case "/enter_record":
		b.reply(ctx, chatID, b.dialogs.start(chatID))
	case "/stop":
		if b.dialogs.stop(chatID) {
			b.reply(ctx, chatID, "Entry cancelled.")
		} else {
			b.reply(ctx, chatID, "Nothing to stop.")
		}
	case "":
		res, ok := b.dialogs.advance(chatID, m.Text)
		if !ok {
			b.reply(ctx, chatID, "Unknown input. Send /start for the list of commands.")
			return
		}
		if res.done != nil {
			b.submit(ctx, chatID, actor, *res.done)
			return
		}
		b.reply(ctx, chatID, res.reply)
	default:
		b.reply(ctx, chatID, "Unknown command. Send /start for the list of commands.")
	}
}

func (b *Bot) cmdSubmit(ctx context.Context, chatID int64, actor types.Actor, args string) {
	sub, err := types.ParseSubmission(args)
	if err != nil {
		b.replyError(ctx, chatID, "submit", err)
		return
	}
	b.submit(ctx, chatID, actor, sub)
}

func (b *Bot) submit(ctx context.Context, chatID int64, actor types.Actor, sub types.Submission) {
	rec, err := b.wf.Submit(ctx, actor, sub)
	if err != nil && rec.ID == 0 {
		b.replyError(ctx, chatID, "submit", err)
		return
	}
	if err != nil {
		b.replyPartial(ctx, chatID, "submit", rec, err)
		return
	}
	b.log.Info("submitted via chat", zap.Int64("record_id", rec.ID), zap.Int64("chat_id", chatID))
}

func (b *Bot) cmdDecide(ctx context.Context, chatID int64, actor types.Actor, action types.Action, args string) {
	id, err := parseID(args)
	if err != nil {
		b.replyError(ctx, chatID, string(action), err)
		return
	}
	rec, err := b.wf.Status(ctx, id)
	if err != nil {
		b.replyError(ctx, chatID, string(action), err)
		return
	}

	var roles []types.Department
	for _, r := range b.dir.Roles(actor.ID) {
		if r == types.DepartmentHead || r == types.DepartmentFinance {
			roles = append(roles, r)
		}
	}
	role, err := service.ResolveRole(rec, roles, action)
	if err != nil {
		b.replyError(ctx, chatID, string(action), err)
		return
	}

	rec, err = b.wf.Decide(ctx, id, role, action, actor)
	if err != nil && rec.ID == 0 {
		b.replyError(ctx, chatID, string(action), err)
		return
	}
	if err != nil {
		b.replyPartial(ctx, chatID, string(action), rec, err)
		return
	}
	verb := "approved"
	if action == types.ActionReject {
		verb = "rejected"
	}
	b.reply(ctx, chatID, fmt.Sprintf("Invoice #%d %s.", id, verb))
}

func (b *Bot) cmdCheck(ctx context.Context, chatID int64, args string) {
	id, err := parseID(args)
	if err != nil {
		b.replyError(ctx, chatID, "check", err)
		return
	}
	rec, err := b.wf.Status(ctx, id)
	if err != nil {
		b.replyError(ctx, chatID, "check", err)
		return
	}
	b.reply(ctx, chatID, statusText(rec))
}

func (b *Bot) cmdShowNotPaid(ctx context.Context, chatID int64) {
	recs, err := b.wf.Unsettled(ctx)
	if err != nil {
		b.replyError(ctx, chatID, "show_not_paid", err)
		return
	}
	if len(recs) == 0 {
		b.reply(ctx, chatID, "No unpaid invoices.")
		return
	}
	lines := make([]string, 0, len(recs))
	for i, r := range recs {
		lines = append(lines, fmt.Sprintf("%d. id: %d, amount: %s, item: %s, group: %s, partner: %s, comment: %s, period: %s, payment method: %s, status: %s, approved by: %s",
			i+1, r.ID, r.Amount.String(), r.ExpenseItem, r.ExpenseGroup, r.Partner, r.Comment,
			types.FormatPeriods(r.Period), r.PaymentMethod, r.Status, strings.Join(r.ApprovedBy, ", ")))
	}
	for _, part := range splitMessage(strings.Join(lines, "\n\n"), MaxMessageLen) {
		b.reply(ctx, chatID, part)
	}
}

func (b *Bot) cmdHistory(ctx context.Context, chatID int64, args string) {
	id, err := parseID(args)
	if err != nil {
		b.replyError(ctx, chatID, "history", err)
		return
	}
	evs, err := b.wf.History(ctx, id)
	if err != nil {
		b.replyError(ctx, chatID, "history", err)
		return
	}
	if len(evs) == 0 {
		b.reply(ctx, chatID, fmt.Sprintf("No history for invoice #%d.", id))
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "History of invoice #%d:\n", id)
	for _, ev := range evs {
		from := string(ev.FromStatus)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(&sb, "%s %s (%s) %s: %s -> %s\n",
			ev.OccurredAt.Format("02.01.2006 15:04"), ev.ActorName, ev.Department, ev.Action, from, ev.ToStatus)
	}
	for _, part := range splitMessage(sb.String(), MaxMessageLen) {
		b.reply(ctx, chatID, part)
	}
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	chatID := q.From.ID
	if q.Message != nil {
		chatID = q.Message.Chat.ID
	}
	actor := b.actor(&q.From, chatID)

	cb, err := types.ParseCallback(q.Data)
	if err != nil {
		b.answer(ctx, q.ID, "Unrecognized button.")
		b.log.Warn("malformed callback", zap.String("data", q.Data), zap.Error(err))
		return
	}
	if !b.dir.HasRole(actor.ID, cb.Department) {
		b.answer(ctx, q.ID, "You are not permitted to do this.")
		return
	}

	var rec types.ExpenseRecord
	if cb.Action == types.ActionPay {
		rec, err = b.wf.Pay(ctx, cb.RecordID, actor)
	} else {
		rec, err = b.wf.Decide(ctx, cb.RecordID, cb.Department, cb.Action, actor)
	}
	switch {
	case err == nil:
		b.answer(ctx, q.ID, "Done.")
	case rec.ID != 0:
		b.answer(ctx, q.ID, "Recorded.")
		b.replyPartial(ctx, chatID, string(cb.Action), rec, err)
	default:
		b.answer(ctx, q.ID, userMessage(err))
		b.reportInternal(ctx, string(cb.Action), err)
	}
}

func (b *Bot) answer(ctx context.Context, callbackID, text string) {
	if err := b.msgr.AnswerCallback(ctx, callbackID, text); err != nil {
		b.log.Warn("answer callback failed", zap.Error(err))
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.msgr.Send(ctx, chatID, text, nil); err != nil {
		b.log.Warn("reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) replyError(ctx context.Context, chatID int64, op string, err error) {
	b.reply(ctx, chatID, userMessage(err))
	b.reportInternal(ctx, op, err)
}

// replyPartial reports an operation that committed but whose notification
// or export failed.
func (b *Bot) replyPartial(ctx context.Context, chatID int64, op string, rec types.ExpenseRecord, err error) {
	b.reply(ctx, chatID, fmt.Sprintf("Invoice #%d recorded as %s, but %s.", rec.ID, rec.Status, partialReason(err)))
	b.log.Error("post-commit failure", zap.String("op", op), zap.Int64("record_id", rec.ID), zap.Error(err))
	b.forward(ctx, fmt.Sprintf("%s #%d: %v", op, rec.ID, err))
}

// reportInternal logs and forwards errors outside the user-facing taxonomy.
func (b *Bot) reportInternal(ctx context.Context, op string, err error) {
	if isUserError(err) {
		return
	}
	b.log.Error("internal error", zap.String("op", op), zap.Error(err))
	b.forward(ctx, fmt.Sprintf("%s: %v", op, err))
}

func (b *Bot) forward(ctx context.Context, text string) {
	if b.devChat == 0 {
		return
	}
	for _, part := range splitMessage("Error: "+text, MaxMessageLen) {
		if _, err := b.msgr.Send(ctx, b.devChat, part, nil); err != nil {
			b.log.Warn("forward to developer failed", zap.Error(err))
			return
		}
	}
}

func isUserError(err error) bool {
	var (
		ve *types.ValidationError
		pe *types.PermissionError
		nf *types.NotFoundError
		mc *types.MalformedCallbackError
	)
	return errors.As(err, &ve) || errors.As(err, &pe) || errors.As(err, &nf) || errors.As(err, &mc)
}

func userMessage(err error) string {
	var (
		ve *types.ValidationError
		pe *types.PermissionError
		nf *types.NotFoundError
		mc *types.MalformedCallbackError
	)
	switch {
	case errors.As(err, &ve):
		return "Invalid input: " + ve.Field + " " + ve.Reason
	case errors.As(err, &pe):
		if pe.AlreadyProcessed {
			return "This invoice has already been processed."
		}
		return "You cannot do this: " + pe.Condition
	case errors.As(err, &nf):
		return fmt.Sprintf("Invoice #%d not found.", nf.ID)
	case errors.As(err, &mc):
		return "Unrecognized button."
	default:
		return "Internal error. The developer has been notified."
	}
}

func partialReason(err error) string {
	notify, exp := errors.Is(err, service.ErrNotify), errors.Is(err, service.ErrExport)
	switch {
	case notify && exp:
		return "notification and export to the accounting sheet failed"
	case exp:
		return "export to the accounting sheet failed"
	default:
		return "notification failed"
	}
}

func statusText(rec types.ExpenseRecord) string {
	by := strings.Join(rec.ApprovedBy, " and ")
	switch rec.Status {
	case types.StatusRejected:
		who := ""
		if n := len(rec.ApprovedBy); n > 0 {
			who = " by " + rec.ApprovedBy[n-1]
		}
		return fmt.Sprintf("Invoice #%d was rejected%s.", rec.ID, who)
	case types.StatusPending:
		return fmt.Sprintf("Invoice #%d was approved by %s and awaits finance approval.", rec.ID, by)
	case types.StatusApproved:
		return fmt.Sprintf("Invoice #%d was approved by %s and awaits payment.", rec.ID, by)
	case types.StatusPaid:
		return fmt.Sprintf("Invoice #%d has been paid.", rec.ID)
	case types.StatusNotProcessed:
		return fmt.Sprintf("Invoice #%d awaits department head approval.", rec.ID)
	default:
		return fmt.Sprintf("Invoice #%d: status unknown.", rec.ID)
	}
}

func helpText(chatID int64) string {
	return "Budget approval bot\n\n" +
		"/enter_record starts a step-by-step invoice entry (/stop cancels it).\n" +
		"/submit_record amount; item; group; partner; comment; periods; payment method submits in one line.\n" +
		"/check ID shows the status of an invoice.\n" +
		"/history ID shows who acted on an invoice.\n" +
		"/show_not_paid lists unpaid invoices.\n" +
		"/approve_record ID and /reject_record ID decide on an invoice.\n\n" +
		fmt.Sprintf("Your chat id: %d", chatID)
}

// splitCommand returns the command (without any @botname suffix) and the
// remaining text. Plain text yields an empty command.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(rest)
}

func parseID(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, &types.ValidationError{Field: "id", Reason: "exactly one invoice id is required"}
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, &types.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not an invoice id", fields[0])}
	}
	return id, nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line boundaries.
func splitMessage(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	var (
		out []string
		cur strings.Builder
		n   int
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			n = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			r := []rune(line)
			out = append(out, string(r[:limit]))
			line = string(r[limit:])
			ln -= limit
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return out
}
