// Package service runs the expense approval workflow: it validates who
// may act on a record, commits the transition, and keeps every
// department's chat view of the record in step with the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/templates"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/tracker"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

var (
	// ErrNotify marks a committed transition whose chat notifications failed.
	ErrNotify = errors.New("notify")
	// ErrExport marks a paid record the exporter could not write.
	ErrExport = errors.New("export")
)

// Exporter receives every record once it is paid.
type Exporter interface {
	Export(ctx context.Context, rec types.ExpenseRecord) error
}

type Engine struct {
	records  store.RecordStore
	events   store.TransitionEventStore
	tracker  *tracker.Tracker
	dir      *Directory
	exporter Exporter
	validate *validator.Validate
	locks    *recordLocks
	log      *zap.Logger
	now      func() time.Time
}

// NewEngine wires the workflow. events and exporter may be nil.
func NewEngine(records store.RecordStore, events store.TransitionEventStore, tr *tracker.Tracker, dir *Directory, exp Exporter, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		records:  records,
		events:   events,
		tracker:  tr,
		dir:      dir,
		exporter: exp,
		validate: newValidator(),
		locks:    newRecordLocks(),
		log:      log.Named("engine"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Submit validates fields, creates the record and notifies the initiator
// and every department head. A notification failure is returned wrapped
// alongside the created record.
func (e *Engine) Submit(ctx context.Context, initiator types.Actor, fields types.Submission) (types.ExpenseRecord, error) {
	rec, err := parseSubmission(e.validate, initiator, fields)
	if err != nil {
		return types.ExpenseRecord{}, err
	}

	id, err := e.records.Create(ctx, rec)
	if err != nil {
		return types.ExpenseRecord{}, fmt.Errorf("submit: %w", err)
	}
	rec.ID = id
	e.log.Info("record submitted",
		zap.Int64("record_id", id),
		zap.Int64("initiator", initiator.ID),
		zap.String("amount", rec.Amount.String()),
		zap.Int("approvals_needed", rec.ApprovalsNeeded),
	)
	e.recordEvent(ctx, rec.ID, initiator, types.DepartmentInitiator, types.ActionSubmit, "", types.StatusNotProcessed)

	unlock := e.locks.Lock(id)
	defer unlock()

	// A fast head may already have acted on the record.
	cur, err := e.records.Get(ctx, id)
	if err != nil {
		return rec, fmt.Errorf("submit %d: reload: %w", id, err)
	}
	if cur.Status != types.StatusNotProcessed {
		return cur, nil
	}

	rc := e.renderContext(cur, "")
	if _, known := e.dir.Nickname(types.DepartmentInitiator, initiator.ID); !known && initiator.Nickname != "" {
		rc.InitiatorNickname = initiator.Nickname
	}
	var errs []error
	if _, err := e.tracker.Dispatch(ctx, rc, types.DepartmentInitiator, templates.StageInitiatorToHead, []int64{cur.InitiatorID}, nil); err != nil {
		errs = append(errs, err)
	}
	if _, err := e.tracker.Dispatch(ctx, rc, types.DepartmentHead, templates.StageFromInitiator,
		e.dir.Members(types.DepartmentHead), types.ApprovalKeyboard(id, types.DepartmentHead)); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return cur, fmt.Errorf("submit %d: %w: %w", id, ErrNotify, err)
	}
	return cur, nil
}

// Decide applies an approve or reject by role on behalf of actor.
func (e *Engine) Decide(ctx context.Context, id int64, role types.Department, action types.Action, actor types.Actor) (types.ExpenseRecord, error) {
	if action != types.ActionApprove && action != types.ActionReject {
		return types.ExpenseRecord{}, deny("unsupported action %q", action)
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	rec, err := e.load(ctx, id)
	if err != nil {
		return types.ExpenseRecord{}, err
	}
	if err := checkEligible(rec, role, action); err != nil {
		return types.ExpenseRecord{}, err
	}

	from := rec.Status
	next := rec.Clone()
	next.ApprovedBy = append(next.ApprovedBy, actor.Name())

	switch {
	case action == types.ActionReject:
		next.Status = types.StatusRejected
	case role == types.DepartmentHead:
		next.ApprovalsReceived = 1
		next.Status = types.StatusApproved
		if next.ApprovalsNeeded == 2 {
			next.Status = types.StatusPending
		}
	case role == types.DepartmentFinance:
		next.ApprovalsReceived = 2
		next.Status = types.StatusApproved
	}

	if err := e.records.Update(ctx, id, store.RecordPatch{
		Status:            &next.Status,
		ApprovalsReceived: &next.ApprovalsReceived,
		ApprovedBy:        next.ApprovedBy,
	}); err != nil {
		return types.ExpenseRecord{}, fmt.Errorf("decide %d: %w", id, err)
	}
	e.log.Info("record decided",
		zap.Int64("record_id", id),
		zap.String("department", string(role)),
		zap.String("action", string(action)),
		zap.String("actor", actor.Name()),
		zap.String("from", string(from)),
		zap.String("to", string(next.Status)),
	)
	e.recordEvent(ctx, id, actor, role, action, from, next.Status)

	var notifyErr error
	if action == types.ActionReject {
		notifyErr = e.broadcastRejected(ctx, next, actor)
	} else if role == types.DepartmentHead {
		notifyErr = e.afterHeadApproval(ctx, next)
	} else {
		notifyErr = e.afterFinanceApproval(ctx, next, actor)
	}
	if notifyErr != nil {
		return next, fmt.Errorf("decide %d: %w: %w", id, ErrNotify, notifyErr)
	}
	return next, nil
}

// Pay marks an approved record paid, notifies everyone involved, and
// exports it. Export failures are returned but the record stays Paid.
func (e *Engine) Pay(ctx context.Context, id int64, actor types.Actor) (types.ExpenseRecord, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	rec, err := e.load(ctx, id)
	if err != nil {
		return types.ExpenseRecord{}, err
	}
	if err := checkEligible(rec, types.DepartmentPayment, types.ActionPay); err != nil {
		return types.ExpenseRecord{}, err
	}

	from := rec.Status
	paid := types.StatusPaid
	if err := e.records.Update(ctx, id, store.RecordPatch{Status: &paid}); err != nil {
		return types.ExpenseRecord{}, fmt.Errorf("pay %d: %w", id, err)
	}
	rec.Status = paid
	e.log.Info("record paid", zap.Int64("record_id", id), zap.String("actor", actor.Name()))
	e.recordEvent(ctx, id, actor, types.DepartmentPayment, types.ActionPay, from, paid)

	ensure := map[types.Department][]int64{
		types.DepartmentInitiator: {rec.InitiatorID},
		types.DepartmentHead:      e.dir.Members(types.DepartmentHead),
		types.DepartmentPayment:   e.dir.Members(types.DepartmentPayment),
	}
	if rec.ApprovalsReceived == 2 {
		ensure[types.DepartmentFinance] = e.financeRecipients(rec)
	}

	var errs []error
	if err := e.tracker.BroadcastTerminal(ctx, e.renderContext(rec, actor.Name()), templates.StagePaid, ensure); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrNotify, err))
	}
	if e.exporter != nil {
		if err := e.exporter.Export(ctx, rec); err != nil {
			e.log.Error("export failed", zap.Int64("record_id", id), zap.Error(err))
			errs = append(errs, fmt.Errorf("%w: %w", ErrExport, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return rec, fmt.Errorf("pay %d: %w", id, err)
	}
	return rec, nil
}

// Status returns the current record.
func (e *Engine) Status(ctx context.Context, id int64) (types.ExpenseRecord, error) {
	return e.load(ctx, id)
}

// Unsettled lists records that are neither paid nor rejected.
func (e *Engine) Unsettled(ctx context.Context) ([]types.ExpenseRecord, error) {
	recs, err := e.records.FindUnsettled(ctx)
	if err != nil {
		return nil, fmt.Errorf("unsettled: %w", err)
	}
	return recs, nil
}

// History returns the audit trail for a record, oldest first.
func (e *Engine) History(ctx context.Context, id int64) ([]store.TransitionEventRecord, error) {
	if _, err := e.load(ctx, id); err != nil {
		return nil, err
	}
	if e.events == nil {
		return nil, nil
	}
	evs, err := e.events.ListByRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history %d: %w", id, err)
	}
	return evs, nil
}

func (e *Engine) load(ctx context.Context, id int64) (types.ExpenseRecord, error) {
	rec, err := e.records.Get(ctx, id)
	if errors.Is(err, store.ErrRecordNotFound) {
		return types.ExpenseRecord{}, &types.NotFoundError{ID: id}
	}
	if err != nil {
		return types.ExpenseRecord{}, fmt.Errorf("load %d: %w", id, err)
	}
	return rec, nil
}

func (e *Engine) afterHeadApproval(ctx context.Context, rec types.ExpenseRecord) error {
	rc := e.renderContext(rec, strings.Join(rec.ApprovedBy, " and "))

	stage := templates.StageHeadToPayment
	if rec.Status == types.StatusPending {
		stage = templates.StageHeadToFinance
	}

	var errs []error
	errs = append(errs,
		e.notify(ctx, rc, types.DepartmentInitiator, stage, []int64{rec.InitiatorID}, nil),
		e.notify(ctx, rc, types.DepartmentHead, stage, e.dir.Members(types.DepartmentHead), nil),
	)
	if rec.Status == types.StatusPending {
		_, err := e.tracker.Dispatch(ctx, rc, types.DepartmentFinance, templates.StageFromHead,
			e.dir.Members(types.DepartmentFinance), types.ApprovalKeyboard(rec.ID, types.DepartmentFinance))
		errs = append(errs, err)
	} else {
		_, err := e.tracker.Dispatch(ctx, rc, types.DepartmentPayment, templates.StageHeadToPayment,
			e.dir.Members(types.DepartmentPayment), types.PaymentKeyboard(rec.ID))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) afterFinanceApproval(ctx context.Context, rec types.ExpenseRecord, actor types.Actor) error {
	rc := e.renderContext(rec, strings.Join(rec.ApprovedBy, " and "))

	_, payErr := e.tracker.Dispatch(ctx, rc, types.DepartmentPayment, templates.StageFinanceToPayment,
		e.dir.Members(types.DepartmentPayment), types.PaymentKeyboard(rec.ID))
	return errors.Join(
		e.notify(ctx, rc, types.DepartmentInitiator, templates.StageHeadFinanceToPayment, []int64{rec.InitiatorID}, nil),
		e.notify(ctx, rc, types.DepartmentHead, templates.StageHeadFinanceToPayment, e.dir.Members(types.DepartmentHead), nil),
		e.notify(ctx, rc, types.DepartmentFinance, templates.StageToPayment, []int64{actor.ID}, nil),
		payErr,
	)
}

func (e *Engine) broadcastRejected(ctx context.Context, rec types.ExpenseRecord, actor types.Actor) error {
	return e.tracker.BroadcastTerminal(ctx, e.renderContext(rec, actor.Name()), templates.StageRejected,
		map[types.Department][]int64{types.DepartmentInitiator: {rec.InitiatorID}})
}

// notify refreshes dept's live messages, or dispatches to recipients when
// the department has none.
func (e *Engine) notify(ctx context.Context, rc templates.Context, dept types.Department, stage templates.Stage, recipients []int64, kb *types.Keyboard) error {
	err := e.tracker.Refresh(ctx, rc, dept, stage, kb)
	if !errors.Is(err, tracker.ErrNotTracked) {
		return err
	}
	_, err = e.tracker.Dispatch(ctx, rc, dept, stage, recipients, kb)
	return err
}

// financeRecipients targets the finance member who approved rec, falling
// back to the whole department when the name is not in the roster.
func (e *Engine) financeRecipients(rec types.ExpenseRecord) []int64 {
	if len(rec.ApprovedBy) >= 2 {
		if id, ok := e.dir.ChatIDByNickname(types.DepartmentFinance, rec.ApprovedBy[1]); ok {
			return []int64{id}
		}
	}
	return e.dir.Members(types.DepartmentFinance)
}

func (e *Engine) renderContext(rec types.ExpenseRecord, approver string) templates.Context {
	nick, ok := e.dir.Nickname(types.DepartmentInitiator, rec.InitiatorID)
	if !ok {
		nick = types.Actor{ID: rec.InitiatorID}.Name()
	}
	r := rec.Clone()
	return templates.Context{
		RecordID:          rec.ID,
		InitiatorNickname: nick,
		Approver:          approver,
		Record:            &r,
	}
}

// recordEvent appends to the audit log. Failures are logged only; a lost
// audit row must not undo a committed transition.
func (e *Engine) recordEvent(ctx context.Context, id int64, actor types.Actor, dept types.Department, action types.Action, from, to types.Status) {
	if e.events == nil {
		return
	}
	err := e.events.RecordEvent(ctx, store.TransitionEventRecord{
		EventID:    uuid.New(),
		RecordID:   id,
		ActorID:    actor.ID,
		ActorName:  actor.Name(),
		Department: dept,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		OccurredAt: e.now(),
	})
	if err != nil {
		e.log.Warn("record transition event failed", zap.Int64("record_id", id), zap.Error(err))
	}
}
