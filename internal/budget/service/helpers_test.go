package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/service"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/store/memory"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/templates"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/tracker"
	"github.com/BrandonDHaskell/budgetbot/internal/budget/types"
)

const (
	chatAlice = int64(1)
	chatBoss  = int64(10)
	chatFin   = int64(20)
	chatFin2  = int64(21)
	chatPay   = int64(30)
)

var (
	alice = types.Actor{ID: chatAlice, Nickname: "@alice"}
	boss  = types.Actor{ID: chatBoss, Nickname: "@boss"}
	fin   = types.Actor{ID: chatFin, Nickname: "@fin"}
	payer = types.Actor{ID: chatPay, Nickname: "@pay"}
)

func testRoster() map[types.Department][]types.Member {
	return map[types.Department][]types.Member{
		types.DepartmentInitiator: {{ChatID: chatAlice, Nickname: "@alice"}},
		types.DepartmentHead:      {{ChatID: chatBoss, Nickname: "@boss"}},
		types.DepartmentFinance:   {{ChatID: chatFin, Nickname: "@fin"}, {ChatID: chatFin2, Nickname: "@fin2"}},
		types.DepartmentPayment:   {{ChatID: chatPay, Nickname: "@pay"}},
	}
}

var errChatUnreachable = errors.New("chat unreachable")

// fakeMessenger records the messages currently visible in every chat.
// Chats listed in failSend or failDelete reject those calls.
type fakeMessenger struct {
	mu         sync.Mutex
	nextID     int64
	visible    map[int64]map[int64]string
	failSend   map[int64]bool
	failDelete map[int64]bool
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		visible:    map[int64]map[int64]string{},
		failSend:   map[int64]bool{},
		failDelete: map[int64]bool{},
	}
}

func (f *fakeMessenger) Send(_ context.Context, chatID int64, text string, _ *types.Keyboard) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[chatID] {
		return 0, errChatUnreachable
	}
	f.nextID++
	if f.visible[chatID] == nil {
		f.visible[chatID] = map[int64]string{}
	}
	f.visible[chatID][f.nextID] = text
	return f.nextID, nil
}

func (f *fakeMessenger) Delete(_ context.Context, chatID, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[chatID] {
		return errChatUnreachable
	}
	delete(f.visible[chatID], messageID)
	return nil
}

func (f *fakeMessenger) texts(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.visible[chatID] {
		out = append(out, t)
	}
	return out
}

// only returns the single visible message in chatID or fails the test.
func (f *fakeMessenger) only(t *testing.T, chatID int64) string {
	t.Helper()
	ts := f.texts(chatID)
	if len(ts) != 1 {
		t.Fatalf("chat %d: expected 1 visible message, got %d: %q", chatID, len(ts), ts)
	}
	return ts[0]
}

type fakeExporter struct {
	mu   sync.Mutex
	recs []types.ExpenseRecord
	err  error
}

func (e *fakeExporter) Export(_ context.Context, rec types.ExpenseRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.recs = append(e.recs, rec)
	return nil
}

type testEnv struct {
	engine  *service.Engine
	records *memory.RecordStore
	events  *memory.TransitionEventStore
	tracker *tracker.Tracker
	msgr    *fakeMessenger
	exp     *fakeExporter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWith(t, templates.Default())
}

func newTestEnvWith(t *testing.T, tmpl tracker.Renderer) *testEnv {
	t.Helper()
	log := zaptest.NewLogger(t)
	env := &testEnv{
		records: memory.NewRecordStore(),
		events:  memory.NewTransitionEventStore(),
		msgr:    newFakeMessenger(),
		exp:     &fakeExporter{},
	}
	env.tracker = tracker.New(env.msgr, tmpl, log)
	env.engine = service.NewEngine(env.records, env.events, env.tracker,
		service.NewDirectory(testRoster()), env.exp, log)
	return env
}

func submission(amount, period string) types.Submission {
	return types.Submission{
		Amount:        amount,
		ExpenseItem:   "Servers",
		ExpenseGroup:  "IT",
		Partner:       "Hetzner",
		Comment:       "rent",
		Period:        period,
		PaymentMethod: "noncash",
	}
}

func isPermission(err error, alreadyProcessed bool) bool {
	var pe *types.PermissionError
	return errors.As(err, &pe) && pe.AlreadyProcessed == alreadyProcessed
}
