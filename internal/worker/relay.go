package worker

import (
	"context"
	"log/slog"
	"sync"
)

// Listener receives the worker's messages from a Relay.
type Listener interface {
	OnProgress(Progress)
	OnBatchDone(BatchDone)
	OnBatchFailed(BatchFailed)
	OnShutdown()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Progress    func(Progress)
	BatchDone   func(BatchDone)
	BatchFailed func(BatchFailed)
	Shutdown    func()
}

func (f ListenerFuncs) OnProgress(m Progress) {
	if f.Progress != nil {
		f.Progress(m)
	}
}

func (f ListenerFuncs) OnBatchDone(m BatchDone) {
	if f.BatchDone != nil {
		f.BatchDone(m)
	}
}

func (f ListenerFuncs) OnBatchFailed(m BatchFailed) {
	if f.BatchFailed != nil {
		f.BatchFailed(m)
	}
}

func (f ListenerFuncs) OnShutdown() {
	if f.Shutdown != nil {
		f.Shutdown()
	}
}

// Relay reads the worker's outbound channel and dispatches every message to
// its listeners in arrival order.
type Relay struct {
	ch        <-chan Message
	mu        sync.RWMutex
	listeners map[int]Listener
	order     []int
	next      int
}

// NewRelay creates a relay over ch.
func NewRelay(ch <-chan Message, listeners ...Listener) *Relay {
	r := &Relay{ch: ch, listeners: make(map[int]Listener)}
	for _, l := range listeners {
		r.Add(l)
	}
	return r
}

// Add registers a listener and returns a function removing it.
func (r *Relay) Add(l Listener) (remove func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.listeners[id] = l
	r.order = append(r.order, id)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Run dispatches messages until the channel closes or ctx ends.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case msg, ok := <-r.ch:
			if !ok {
				return nil
			}
			r.dispatch(msg)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *Relay) snapshot() []Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Listener, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.listeners[id])
	}
	return out
}

func (r *Relay) dispatch(msg Message) {
	for _, l := range r.snapshot() {
		switch m := msg.(type) {
		case Progress:
			l.OnProgress(m)
		case BatchDone:
			l.OnBatchDone(m)
		case BatchFailed:
			l.OnBatchFailed(m)
		case Shutdown:
			l.OnShutdown()
		}
	}
}

// LogListener logs every message.
func LogListener(logger *slog.Logger) Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return ListenerFuncs{
		Progress: func(m Progress) {
			logger.Debug("batch progress", "batch_id", m.BatchID, "done", m.Done, "total", m.Total, "percent", m.Percent)
		},
		BatchDone: func(m BatchDone) {
			logger.Info("batch done", "batch_id", m.BatchID, "document_id", m.DocumentID, "pages", m.Pages, "failed", len(m.Failed))
			for _, f := range m.Failed {
				logger.Warn("page skipped", "batch_id", m.BatchID, "page", f.Index, "path", f.Path, "error", f.Err)
			}
		},
		BatchFailed: func(m BatchFailed) {
			logger.Error("batch failed", "batch_id", m.BatchID, "error", m.Err)
		},
		Shutdown: func() {
			logger.Info("worker shut down")
		},
	}
}

// ProgressCallbackListener drives a ProgressCallback from worker messages.
type ProgressCallbackListener struct {
	cb      ProgressCallback
	mu      sync.Mutex
	started map[string]int
}

// NewProgressCallbackListener wraps cb.
func NewProgressCallbackListener(cb ProgressCallback) *ProgressCallbackListener {
	return &ProgressCallbackListener{cb: cb, started: make(map[string]int)}
}

func (p *ProgressCallbackListener) OnProgress(m Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.started[m.BatchID]; !ok {
		p.cb.OnStart(m.Total)
	}
	p.started[m.BatchID] = m.Done
	p.cb.OnProgress(m.Done, m.Total)
}

func (p *ProgressCallbackListener) OnBatchDone(m BatchDone) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.started, m.BatchID)
	p.cb.OnComplete()
}

func (p *ProgressCallbackListener) OnBatchFailed(m BatchFailed) {
	p.mu.Lock()
	defer p.mu.Unlock()
	done := p.started[m.BatchID]
	delete(p.started, m.BatchID)
	p.cb.OnError(done, m.Err)
}

func (p *ProgressCallbackListener) OnShutdown() {}
