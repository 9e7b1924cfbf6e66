package trigger

import (
	"context"
	"sync"

	"github.com/YuminosukeSato/adpipe/pkg/errors"
	"github.com/YuminosukeSato/adpipe/pkg/log"
)

// ErrQueueFull is returned when the dispatch buffer has no room.
var ErrQueueFull = errors.New("trigger queue full")

// ErrClosed is returned after Close.
var ErrClosed = errors.New("trigger closed")

// Async enqueues requests and dispatches them on a background goroutine.
// Trigger returns as soon as the request is buffered.
type Async struct {
	next   Trigger
	logger log.Logger
	queue  chan Request
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the dispatch goroutine.
func NewAsync(next Trigger, size int, logger log.Logger) *Async {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = log.NewSlogLogger(nil)
	}
	a := &Async{
		next:   next,
		logger: logger,
		queue:  make(chan Request, size),
		done:   make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for req := range a.queue {
		// 呼び出し元の ctx はすでに終わっている可能性がある
		if err := a.next.Trigger(context.Background(), req); err != nil {
			a.logger.Error("Downstream trigger failed", err, log.DAGKey, req.DAGID)
			continue
		}
		a.logger.Debug("Downstream trigger dispatched", log.DAGKey, req.DAGID)
	}
}

// Trigger implements Trigger without waiting for delivery.
func (a *Async) Trigger(ctx context.Context, req Request) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.Wrapf(ErrQueueFull, "dag %s", req.DAGID)
	}
}

// Close stops accepting requests and waits for the queue to drain or ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
