// Package worker runs blocking jobs on a fixed set of goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned for jobs submitted after Close.
var ErrClosed = errors.New("worker: pool closed")

// Pool executes submitted jobs on a fixed number of goroutines.
type Pool struct {
	jobs   chan func()
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewPool starts n workers. n <= 0 is treated as 1.
func NewPool(n int, logger *slog.Logger) *Pool {
	if n <= 0 {
		n = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Pool{
		jobs:   make(chan func()),
		logger: logger,
	}
	p.wg.Add(n)
	for id := range n {
		go p.run(id)
	}
	return p
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		job()
	}
	p.logger.Debug("worker stopped", "worker", id)
}

// Close stops accepting jobs and waits for running ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// submit hands job to an idle worker, or gives up when ctx ends first.
func (p *Pool) submit(ctx context.Context, job func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type result[T any] struct {
	val T
	err error
}

// Do runs fn on the pool and waits for its result. If ctx ends first Do
// returns ctx.Err(); a job already running finishes in the background and
// its result is dropped.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	done := make(chan result[T], 1)
	err := p.submit(ctx, func() {
		v, err := fn(ctx)
		done <- result[T]{v, err}
	})
	if err != nil {
		return zero, err
	}
	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
