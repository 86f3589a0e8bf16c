package db

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Worker serializes write transactions through a single goroutine so that
// SQLite never sees concurrent writers.
type Worker struct {
	db   *sql.DB
	log  *zap.Logger
	jobs chan job
	done chan struct{}
}

type WorkerOption func(*workerOptions)

type workerOptions struct {
	queue int
	log   *zap.Logger
}

// WithQueueSize bounds the number of pending jobs before Do blocks.
func WithQueueSize(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.queue = n
		}
	}
}

func WithLogger(l *zap.Logger) WorkerOption {
	return func(o *workerOptions) {
		if l != nil {
			o.log = l
		}
	}
}

func NewWorker(db *sql.DB, opts ...WorkerOption) *Worker {
	o := workerOptions{queue: 256, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	w := &Worker{
		db:   db,
		log:  o.log,
		jobs: make(chan job, o.queue),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) Close() {
	close(w.jobs)
	<-w.done
}

func (w *Worker) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}

	// If the caller gives up, the loop still finishes the transaction and
	// the result lands in the buffered ch.
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer close(w.done)

	for j := range w.jobs {
		tx, err := w.db.BeginTx(j.ctx, nil)
		if err != nil {
			j.ch <- err
			continue
		}

		if err := j.fn(j.ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				w.log.Warn("db worker: rollback failed", zap.Error(rbErr))
			}
			j.ch <- err
			continue
		}

		j.ch <- tx.Commit()
	}
}
