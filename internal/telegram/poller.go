package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// UpdateHandler consumes updates from the poller or the webhook.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u Update)
}

type updateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// DefaultConcurrency bounds how many updates are handled at once.
const DefaultConcurrency = 16

// Poller long-polls getUpdates and hands updates to the handler
// concurrently. Messages from one chat are handled in arrival order so
// dialog answers never overtake each other; callbacks and other chats run
// in parallel. Start/Stop mirror the other background loops in the server.
type Poller struct {
	src     updateSource
	handler UpdateHandler
	timeout time.Duration
	backoff time.Duration
	log     *zap.Logger
	group   *errgroup.Group
	cancel  context.CancelFunc
	done    chan struct{}

	mu    sync.Mutex
	chats map[int64][]Update // queued messages per chat with a running drain
}

func NewPoller(src updateSource, h UpdateHandler, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	g := &errgroup.Group{}
	g.SetLimit(DefaultConcurrency)
	return &Poller{
		src:     src,
		handler: h,
		timeout: 50 * time.Second,
		backoff: 3 * time.Second,
		log:     log.Named("poller"),
		group:   g,
		done:    make(chan struct{}),
		chats:   make(map[int64][]Update),
	}
}

func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)
	p.log.Info("telegram poller started", zap.Duration("timeout", p.timeout))
}

// Stop cancels the loop and waits for it and every in-flight handler.
// Safe to call more than once.
func (p *Poller) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	defer func() { _ = p.group.Wait() }()

	var offset int64
	for {
		ups, err := p.src.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.log.Warn("getUpdates failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}
		for _, u := range ups {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			p.dispatch(ctx, u)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, u Update) {
	if u.Message == nil {
		p.group.Go(func() error {
			p.handler.HandleUpdate(ctx, u)
			return nil
		})
		return
	}

	chatID := u.Message.Chat.ID
	p.mu.Lock()
	queue, running := p.chats[chatID]
	p.chats[chatID] = append(queue, u)
	p.mu.Unlock()
	if running {
		return
	}
	p.group.Go(func() error {
		p.drain(ctx, chatID)
		return nil
	})
}

// drain handles chatID's queued messages until the queue is empty.
func (p *Poller) drain(ctx context.Context, chatID int64) {
	for {
		p.mu.Lock()
		queue := p.chats[chatID]
		if len(queue) == 0 {
			delete(p.chats, chatID)
			p.mu.Unlock()
			return
		}
		next := queue[0]
		p.chats[chatID] = queue[1:]
		p.mu.Unlock()

		p.handler.HandleUpdate(ctx, next)
	}
}
