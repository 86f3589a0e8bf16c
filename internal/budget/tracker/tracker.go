// Package tracker remembers which chat messages currently show each
// record to each department, and replaces them as the record advances.
package tracker

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/templates"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

var ErrNotTracked = errors.New("department has no live messages for record")

// Messenger is the chat transport the tracker drives.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, kb *types.Keyboard) (int64, error)
	Delete(ctx context.Context, chatID, messageID int64) error
}

type Renderer interface {
	Render(dept types.Department, stage templates.Stage, rc templates.Context) (string, error)
}

// Delivery is one message shown to one recipient.
type Delivery struct {
	ChatID    int64
	MessageID int64
}

type Tracker struct {
	msgr Messenger
	tmpl Renderer
	log  *zap.Logger

	mu   sync.Mutex
	live map[int64]map[types.Department][]Delivery
}

func New(msgr Messenger, tmpl Renderer, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		msgr: msgr,
		tmpl: tmpl,
		log:  log.Named("tracker"),
		live: make(map[int64]map[types.Department][]Delivery),
	}
}

// Dispatch renders the stage text once and sends it to every recipient.
// Failed sends are logged and skipped. The successful deliveries replace
// whatever set was live for (record, dept); the replaced messages are then
// deleted best-effort.
func (t *Tracker) Dispatch(ctx context.Context, rc templates.Context, dept types.Department, stage templates.Stage, recipients []int64, kb *types.Keyboard) ([]Delivery, error) {
	text, err := t.tmpl.Render(dept, stage, rc)
	if err != nil {
		return nil, err
	}

	sent := make([]Delivery, 0, len(recipients))
	for _, chatID := range recipients {
		msgID, err := t.msgr.Send(ctx, chatID, text, kb)
		if err != nil {
			t.logDelivery(rc.RecordID, dept, &types.DeliveryError{Op: "send", Recipient: chatID, Err: err})
			continue
		}
		sent = append(sent, Delivery{ChatID: chatID, MessageID: msgID})
	}

	old := t.swap(rc.RecordID, dept, sent)
	t.deleteAll(ctx, rc.RecordID, dept, old)

	return sent, nil
}

// Refresh replaces every live message of (record, dept) with the stage
// text: send the new one first, then delete the old one. A failed send
// leaves the old message tracked.
func (t *Tracker) Refresh(ctx context.Context, rc templates.Context, dept types.Department, stage templates.Stage, kb *types.Keyboard) error {
	current, ok := t.snapshot(rc.RecordID, dept)
	if !ok {
		return ErrNotTracked
	}

	text, err := t.tmpl.Render(dept, stage, rc)
	if err != nil {
		return err
	}

	next := make([]Delivery, 0, len(current))
	for _, d := range current {
		msgID, err := t.msgr.Send(ctx, d.ChatID, text, kb)
		if err != nil {
			t.logDelivery(rc.RecordID, dept, &types.DeliveryError{Op: "send", Recipient: d.ChatID, Err: err})
			next = append(next, d)
			continue
		}
		if err := t.msgr.Delete(ctx, d.ChatID, d.MessageID); err != nil {
			t.logDelivery(rc.RecordID, dept, &types.DeliveryError{Op: "delete", Recipient: d.ChatID, Err: err})
		}
		next = append(next, Delivery{ChatID: d.ChatID, MessageID: msgID})
	}

	t.swap(rc.RecordID, dept, next)
	return nil
}

// BroadcastTerminal pushes a terminal stage to every tracked department in
// parallel, dispatches it to each department in ensure that has nothing
// tracked, and then forgets the record. Errors from the individual
// departments are joined.
func (t *Tracker) BroadcastTerminal(ctx context.Context, rc templates.Context, stage templates.Stage, ensure map[types.Department][]int64) error {
	tracked := t.Departments(rc.RecordID)
	isTracked := make(map[types.Department]bool, len(tracked))
	for _, d := range tracked {
		isTracked[d] = true
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	collect := func(err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, dept := range tracked {
		dept := dept
		g.Go(func() error {
			collect(t.Refresh(ctx, rc, dept, stage, nil))
			return nil
		})
	}
	for dept, recipients := range ensure {
		if isTracked[dept] || len(recipients) == 0 {
			continue
		}
		dept, recipients := dept, recipients
		g.Go(func() error {
			_, err := t.Dispatch(ctx, rc, dept, stage, recipients, nil)
			collect(err)
			return nil
		})
	}
	_ = g.Wait()

	t.Forget(rc.RecordID)
	return errors.Join(errs...)
}

// Tracked reports whether (record, dept) has a live set.
func (t *Tracker) Tracked(recordID int64, dept types.Department) bool {
	_, ok := t.snapshot(recordID, dept)
	return ok
}

// Live returns a copy of the live set for (record, dept).
func (t *Tracker) Live(recordID int64, dept types.Department) []Delivery {
	d, _ := t.snapshot(recordID, dept)
	return d
}

// Departments lists the departments holding a live set, in chain order.
func (t *Tracker) Departments(recordID int64) []types.Department {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.Department, 0, len(t.live[recordID]))
	for d := range t.live[recordID] {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return chainIndex(out[i]) < chainIndex(out[j]) })
	return out
}

func (t *Tracker) Forget(recordID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, recordID)
}

func (t *Tracker) snapshot(recordID int64, dept types.Department) ([]Delivery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.live[recordID][dept]
	if !ok {
		return nil, false
	}
	return append([]Delivery(nil), d...), true
}

// swap installs next as the live set and returns the previous one. An
// empty next untracks the department.
func (t *Tracker) swap(recordID int64, dept types.Department, next []Delivery) []Delivery {
	t.mu.Lock()
	defer t.mu.Unlock()

	byDept := t.live[recordID]
	old := byDept[dept]
	if len(next) == 0 {
		delete(byDept, dept)
		if len(byDept) == 0 {
			delete(t.live, recordID)
		}
		return old
	}
	if byDept == nil {
		byDept = make(map[types.Department][]Delivery)
		t.live[recordID] = byDept
	}
	byDept[dept] = next
	return old
}

func (t *Tracker) deleteAll(ctx context.Context, recordID int64, dept types.Department, ds []Delivery) {
	for _, d := range ds {
		if err := t.msgr.Delete(ctx, d.ChatID, d.MessageID); err != nil {
			t.logDelivery(recordID, dept, &types.DeliveryError{Op: "delete", Recipient: d.ChatID, Err: err})
		}
	}
}

func (t *Tracker) logDelivery(recordID int64, dept types.Department, err *types.DeliveryError) {
	t.log.Warn("delivery failed",
		zap.Int64("record_id", recordID),
		zap.String("department", string(dept)),
		zap.String("op", err.Op),
		zap.Int64("recipient", err.Recipient),
		zap.Error(err.Err),
	)
}

func chainIndex(d types.Department) int {
	for i, c := range types.Departments {
		if c == d {
			return i
		}
	}
	return len(types.Departments)
}
