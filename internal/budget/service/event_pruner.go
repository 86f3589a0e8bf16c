package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/budgetbot/internal/budget/store"
)

// EventPruner periodically deletes transition events older than the
// retention period. A retention of 0 disables it.
type EventPruner struct {
	store     store.TransitionEventStore
	retention time.Duration
	interval  time.Duration
	log       *zap.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	// RetentionDays of audit history to keep; 0 keeps everything.
	RetentionDays int

	// IntervalHours between runs. Defaults to 6.
	IntervalHours int
}

// NewEventPruner creates a pruner; call Start to begin the loop.
func NewEventPruner(s store.TransitionEventStore, cfg PrunerConfig, log *zap.Logger) *EventPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &EventPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		log:       log.Named("event_pruner"),
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *EventPruner) Start(ctx context.Context) {
	if p.retention <= 0 || p.store == nil {
		p.log.Info("event pruner disabled")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.log.Info("event pruner started",
		zap.Int("retention_days", int(p.retention.Hours()/24)),
		zap.Int("interval_hours", int(p.interval.Hours())),
	)
}

// Stop signals the loop to exit and waits for it.
func (p *EventPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *EventPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *EventPruner) prune(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error("event prune failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		p.log.Info("event prune", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
}
