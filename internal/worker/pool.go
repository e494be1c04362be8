package worker

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
)

// Pool is a fixed set of long-lived goroutines executing submitted tasks.
type Pool struct {
	tasks  chan func()
	wg     sync.WaitGroup
	size   int
	once   sync.Once
	logger *slog.Logger
}

// NewPool starts size workers. A size of zero or less uses one worker per
// CPU.
func NewPool(size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pool{
		tasks:  make(chan func()),
		size:   size,
		logger: logger,
	}
	for range size {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.size }

func (p *Pool) work() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pool task panicked", "panic", r)
		}
	}()
	task()
}

// Submit hands task to the next idle worker. It returns false if ctx ends
// first.
func (p *Pool) Submit(ctx context.Context, task func()) bool {
	select {
	case p.tasks <- task:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close stops accepting tasks and waits for running ones.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.tasks) })
	p.wg.Wait()
}
