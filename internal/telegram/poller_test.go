package telegram_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BrandonDHaskell/budgetbot/internal/telegram"
)

type scriptedSource struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	offsets []int64
}

func (s *scriptedSource) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	s.mu.Lock()
	s.offsets = append(s.offsets, offset)
	if len(s.batches) > 0 {
		b := s.batches[0]
		s.batches = s.batches[1:]
		s.mu.Unlock()
		return b, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingHandler struct {
	mu  sync.Mutex
	ids []int64
}

func (h *recordingHandler) HandleUpdate(_ context.Context, u telegram.Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, u.UpdateID)
}

func (h *recordingHandler) seen() []int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int64(nil), h.ids...)
}

func TestPoller_AdvancesOffset(t *testing.T) {
	src := &scriptedSource{batches: [][]telegram.Update{
		{{UpdateID: 5}, {UpdateID: 6}},
		{{UpdateID: 9}},
	}}
	h := &recordingHandler{}
	p := telegram.NewPoller(src, h, zaptest.NewLogger(t))

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return len(h.seen()) == 3 }, 2*time.Second, 10*time.Millisecond)
	p.Stop()
	p.Stop()

	assert.ElementsMatch(t, []int64{5, 6, 9}, h.seen())
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []int64{0, 7, 10}, src.offsets[:3])
}

func message(updateID, chatID int64) telegram.Update {
	return telegram.Update{UpdateID: updateID, Message: &telegram.Message{Chat: telegram.Chat{ID: chatID}, Text: "x"}}
}

// blockingHandler holds update 1 until update 2 has been handled.
type blockingHandler struct {
	recordingHandler
	second chan struct{}
	waited chan bool
}

func (h *blockingHandler) HandleUpdate(ctx context.Context, u telegram.Update) {
	switch u.UpdateID {
	case 1:
		select {
		case <-h.second:
			h.waited <- true
		case <-time.After(2 * time.Second):
			h.waited <- false
		}
	case 2:
		h.recordingHandler.HandleUpdate(ctx, u)
		close(h.second)
		return
	}
	h.recordingHandler.HandleUpdate(ctx, u)
}

func TestPoller_DifferentChatsRunInParallel(t *testing.T) {
	for name, batch := range map[string][]telegram.Update{
		"messages":  {message(1, 100), message(2, 200)},
		"callbacks": {{UpdateID: 1, CallbackQuery: &telegram.CallbackQuery{ID: "a"}}, {UpdateID: 2, CallbackQuery: &telegram.CallbackQuery{ID: "b"}}},
	} {
		batch := batch
		t.Run(name, func(t *testing.T) {
			src := &scriptedSource{batches: [][]telegram.Update{batch}}
			h := &blockingHandler{second: make(chan struct{}), waited: make(chan bool, 1)}
			p := telegram.NewPoller(src, h, zaptest.NewLogger(t))

			p.Start(context.Background())
			defer p.Stop()

			select {
			case ok := <-h.waited:
				require.True(t, ok, "update 2 was not handled while update 1 was in flight")
			case <-time.After(3 * time.Second):
				t.Fatal("update 1 never finished")
			}
			assert.Eventually(t, func() bool { return len(h.seen()) == 2 }, time.Second, 10*time.Millisecond)
			assert.Equal(t, []int64{2, 1}, h.seen())
		})
	}
}

// slowHandler sleeps on the first update so a later one from the same
// chat would overtake it if ordering were not kept.
type slowHandler struct {
	recordingHandler
}

func (h *slowHandler) HandleUpdate(ctx context.Context, u telegram.Update) {
	if u.UpdateID == 1 {
		time.Sleep(50 * time.Millisecond)
	}
	h.recordingHandler.HandleUpdate(ctx, u)
}

func TestPoller_KeepsOrderWithinChat(t *testing.T) {
	src := &scriptedSource{batches: [][]telegram.Update{
		{message(1, 100), message(2, 100)},
		{message(3, 100)},
	}}
	h := &slowHandler{}
	p := telegram.NewPoller(src, h, zaptest.NewLogger(t))

	p.Start(context.Background())
	assert.Eventually(t, func() bool { return len(h.seen()) == 3 }, 2*time.Second, 10*time.Millisecond)
	p.Stop()

	assert.Equal(t, []int64{1, 2, 3}, h.seen())
}

func TestPoller_StopWaitsForInFlightHandlers(t *testing.T) {
	src := &scriptedSource{batches: [][]telegram.Update{{message(1, 100)}}}
	h := &slowHandler{}
	p := telegram.NewPoller(src, h, zaptest.NewLogger(t))

	p.Start(context.Background())
	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.offsets) >= 2
	}, time.Second, 5*time.Millisecond)
	p.Stop()

	assert.Equal(t, []int64{1}, h.seen())
}
