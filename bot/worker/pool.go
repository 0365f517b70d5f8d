package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/liuran001/SongShare-Go/bot"
)

var (
	ErrPoolClosed = errors.New("worker pool closed")
	ErrPoolFull   = errors.New("worker pool queue full")
)

// PanicHandler receives values recovered from panicking tasks.
type PanicHandler func(recovered any)

var _ bot.WorkerPool = (*Pool)(nil)

// Pool provides bounded concurrency execution.
type Pool struct {
	tasks   chan func()
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	size    int
	onPanic PanicHandler
}

// Option customizes a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	queueSize int
	onPanic   PanicHandler
}

// WithQueueSize sets how many tasks may wait for a free worker.
func WithQueueSize(n int) Option {
	return func(o *poolOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithPanicHandler installs a handler for panics raised by tasks.
func WithPanicHandler(h PanicHandler) Option {
	return func(o *poolOptions) {
		o.onPanic = h
	}
}

// New creates a worker pool with the given size.
func New(size int, opts ...Option) *Pool {
	if size <= 0 {
		size = 1
	}

	options := poolOptions{queueSize: size * 8}
	if options.queueSize < 8 {
		options.queueSize = 8
	}
	for _, opt := range opts {
		opt(&options)
	}

	p := &Pool{
		tasks:   make(chan func(), options.queueSize),
		size:    size,
		onPanic: options.onPanic,
	}

	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				if task != nil {
					p.run(task)
				}
			}
		}()
	}

	return p
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil && p.onPanic != nil {
			p.onPanic(r)
		}
	}()
	task()
}

// TrySubmit enqueues a task without blocking. It returns ErrPoolFull when no
// queue slot is free.
func (p *Pool) TrySubmit(task func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// Shutdown waits for in-flight tasks until context is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// StopNow closes the pool without waiting for tasks to finish.
func (p *Pool) StopNow() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}
