// Package batchpool buffers writes in memory and delivers them in batches,
// either when the buffer reaches a size threshold or when a timer fires.
//
// Failed deliveries are retried with backoff; if every attempt fails the
// batch goes back to the front of the buffer and the timer is re-armed, so
// queued items are never dropped.
package batchpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mx-space/mdx-core/internal/pkg/apperr"
	"github.com/mx-space/mdx-core/internal/pkg/retry"
)

const (
	DefaultThreshold = 64
	DefaultTTL       = 300 * time.Second
)

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("batchpool: pool is closed")

// FlushFunc delivers one batch. It must be safe to call again with the same
// batch after a failure.
type FlushFunc[T any] func(ctx context.Context, batch []T) error

type Options struct {
	// Name tags log lines and errors.
	Name      string
	Threshold int
	TTL       time.Duration
	Retry     retry.Policy
	Logger    *zap.Logger
}

// Pool is a write buffer for items of type T. The zero value is not usable;
// call New.
type Pool[T any] struct {
	name      string
	threshold int
	ttl       time.Duration
	policy    retry.Policy
	deliver   FlushFunc[T]
	logger    *zap.Logger

	// flushMu is held for the whole of a flush so at most one delivery runs
	// at a time.
	flushMu sync.Mutex

	mu     sync.Mutex
	items  []T
	timer  *time.Timer
	closed bool
}

// New builds a pool that hands batches to deliver.
func New[T any](deliver FlushFunc[T], opts Options) *Pool[T] {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Name == "" {
		opts.Name = "pool"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool[T]{
		name:      opts.Name,
		threshold: opts.Threshold,
		ttl:       opts.TTL,
		policy:    opts.Retry,
		deliver:   deliver,
		logger:    logger.Named(opts.Name),
	}
}

// Add queues item and makes sure a flush timer is armed. When the buffer
// reaches the threshold the pool also flushes before returning and reports
// that flush's result. The timer stays armed until a flush takes the batch,
// so items still drain if ctx ends while waiting for the flush slot.
func (p *Pool[T]) Add(ctx context.Context, item T) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.items = append(p.items, item)
	full := len(p.items) >= p.threshold
	p.armLocked()
	p.mu.Unlock()

	if full {
		return p.Flush(ctx)
	}
	return nil
}

// Len reports the number of queued items.
func (p *Pool[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Flush delivers everything queued so far. A call made while another flush
// is running waits for it and then drains what accumulated in the meantime.
//
// ctx only bounds the wait for the flush slot. Delivery itself runs detached
// from the caller so an abandoned request does not abort a write.
func (p *Pool[T]) Flush(ctx context.Context) error {
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.flushMu.Unlock()

	p.mu.Lock()
	p.stopLocked()
	batch := p.items
	p.items = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	deliverCtx := context.WithoutCancel(ctx)
	err := p.policy.Do(deliverCtx, func(ctx context.Context) error {
		return p.deliver(ctx, batch)
	})
	if err == nil {
		p.logger.Debug("flushed batch", zap.Int("size", len(batch)))
		return nil
	}

	p.mu.Lock()
	p.items = append(batch, p.items...)
	queued := len(p.items)
	if !p.closed {
		p.armLocked()
	}
	p.mu.Unlock()

	p.logger.Error("flush failed, batch re-queued",
		zap.Int("size", len(batch)),
		zap.Int("queued", queued),
		zap.Error(err),
	)
	return apperr.Internal(p.name, err)
}

// Close rejects further Adds and performs a final flush. Items that still
// fail to deliver stay queued and the error is returned.
func (p *Pool[T]) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.stopLocked()
	p.mu.Unlock()
	return p.Flush(ctx)
}

func (p *Pool[T]) acquire(ctx context.Context) error {
	if p.flushMu.TryLock() {
		return nil
	}
	locked := make(chan struct{})
	go func() {
		p.flushMu.Lock()
		close(locked)
	}()
	select {
	case <-locked:
		return nil
	case <-ctx.Done():
		// Hand the lock back once the pending acquisition completes.
		go func() {
			<-locked
			p.flushMu.Unlock()
		}()
		return ctx.Err()
	}
}

func (p *Pool[T]) armLocked() {
	if p.timer != nil || p.closed {
		return
	}
	p.timer = time.AfterFunc(p.ttl, p.onTimer)
}

func (p *Pool[T]) stopLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pool[T]) onTimer() {
	if err := p.Flush(context.Background()); err != nil {
		p.logger.Warn("timed flush failed", zap.Error(err))
	}
}
