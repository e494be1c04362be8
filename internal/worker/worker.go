package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/notely/internal/processor"
	"github.com/MeKo-Tech/notely/internal/store"
)

// State is the worker's position in its batch cycle.
type State int32

const (
	Idle State = iota
	Processing
	CommittingBatch
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case CommittingBatch:
		return "committing"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultMessageBuffer is the outbound channel capacity.
const DefaultMessageBuffer = 256

// Worker processes one batch at a time. Pages within a batch run in
// parallel on the pool.
type Worker struct {
	processor PageProcessor
	committer Committer
	names     NameChecker
	logger    *slog.Logger
	poolSize  int

	queue   *queue
	out     chan Message
	state   atomic.Int32
	running atomic.Bool

	mu       sync.Mutex
	activeID string
	cancel   context.CancelFunc
}

// Option configures a Worker.
type Option func(*Worker)

// WithPoolSize sets the number of pages processed concurrently.
func WithPoolSize(n int) Option {
	return func(w *Worker) { w.poolSize = n }
}

// WithNameChecker enables the duplicate-name check in Submit.
func WithNameChecker(names NameChecker) Option {
	return func(w *Worker) { w.names = names }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithMessageBuffer sets the outbound channel capacity.
func WithMessageBuffer(n int) Option {
	return func(w *Worker) {
		if n >= 0 {
			w.out = make(chan Message, n)
		}
	}
}

// New creates a worker. Call Run to start it.
func New(proc PageProcessor, committer Committer, opts ...Option) *Worker {
	w := &Worker{
		processor: proc,
		committer: committer,
		logger:    slog.Default(),
		queue:     newQueue(),
		out:       make(chan Message, DefaultMessageBuffer),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.names == nil {
		if nc, ok := committer.(NameChecker); ok {
			w.names = nc
		}
	}
	return w
}

// Messages returns the outbound channel. It is closed after Shutdown.
func (w *Worker) Messages() <-chan Message { return w.out }

// State returns the current state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) { w.state.Store(int32(s)) }

// QueueLen returns the number of batches waiting.
func (w *Worker) QueueLen() int { return w.queue.len() }

// Submit validates job and queues it. It returns the batch id.
func (w *Worker) Submit(ctx context.Context, job Job) (string, error) {
	if err := validate(ctx, &job, w.names); err != nil {
		return "", err
	}
	j := job.clone()
	if j.ID == "" {
		j.ID = newJobID()
	}
	if !w.queue.push(j) {
		return "", ErrShutdown
	}
	queueDepth.Inc()
	w.logger.Info("batch queued", "batch_id", j.ID, "name", j.Name, "files", len(j.Files))
	return j.ID, nil
}

// Withdraw removes a queued batch that has not started and deletes its
// temporary directories.
func (w *Worker) Withdraw(id string) bool {
	job, ok := w.queue.remove(id)
	if !ok {
		return false
	}
	queueDepth.Dec()
	w.cleanup(job)
	w.logger.Info("batch withdrawn", "batch_id", id)
	return true
}

// Cancel stops the batch currently being processed. Pages not yet started
// are skipped and nothing is committed.
func (w *Worker) Cancel(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.activeID != id || w.cancel == nil {
		return false
	}
	w.cancel()
	return true
}

// Shutdown asks the worker to stop once the queued batches are done.
func (w *Worker) Shutdown() {
	w.queue.push(nil)
}

// Run processes batches until Shutdown or until ctx ends. It emits Shutdown
// and closes the message channel before returning.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	pool := NewPool(w.poolSize, w.logger)
	w.logger.Info("worker started", "pool_size", pool.Size())

	defer func() {
		pool.Close()
		for _, job := range w.queue.drain() {
			queueDepth.Dec()
			w.cleanup(job)
		}
		w.setState(Terminated)
		w.emitShutdown(ctx)
		close(w.out)
		w.logger.Info("worker stopped")
	}()

	for {
		w.setState(Idle)
		var batchCtx context.Context
		var cancel context.CancelFunc
		job, ok := w.queue.pop(ctx, func(j *Job) {
			batchCtx, cancel = context.WithCancel(ctx)
			w.mu.Lock()
			w.activeID, w.cancel = j.ID, cancel
			w.mu.Unlock()
		})
		if !ok {
			return ctx.Err()
		}
		if job == nil {
			return nil
		}
		queueDepth.Dec()
		w.runBatch(ctx, batchCtx, cancel, pool, job)
	}
}

// emitShutdown waits for the consumer to take the Shutdown notice. Once ctx
// is done it only delivers the notice if there is room.
func (w *Worker) emitShutdown(ctx context.Context) {
	select {
	case w.out <- Shutdown{}:
		return
	case <-ctx.Done():
	}
	select {
	case w.out <- Shutdown{}:
	default:
		w.logger.Warn("message channel full, shutdown notice dropped")
	}
}

type pageOutcome struct {
	index  int
	path   string
	result *processor.PageResult
	err    error
}

// runBatch processes a job that pop already claimed under batchCtx.
func (w *Worker) runBatch(ctx, batchCtx context.Context, cancel context.CancelFunc, pool *Pool, job *Job) {
	defer func() {
		w.mu.Lock()
		w.activeID, w.cancel = "", nil
		w.mu.Unlock()
		cancel()
		w.cleanup(job)
	}()

	logger := w.logger.With("batch_id", job.ID, "name", job.Name)
	logger.Info("batch started", "pages", len(job.Files), "config", job.Config.String())
	w.setState(Processing)
	start := time.Now()

	results, failures := w.processPages(batchCtx, ctx, pool, job)

	if err := batchCtx.Err(); err != nil {
		logger.Warn("batch canceled", "completed", len(results))
		batchesTotal.WithLabelValues(statusCanceled).Inc()
		w.emit(ctx, BatchFailed{BatchID: job.ID, Err: context.Canceled})
		return
	}

	w.setState(CommittingBatch)
	if len(results) == 0 {
		err := fmt.Errorf("%w: %d of %d pages failed", ErrEmptyBatch, len(failures), len(job.Files))
		logger.Error("nothing to commit", "error", err)
		batchesTotal.WithLabelValues(statusEmpty).Inc()
		w.emit(ctx, BatchFailed{BatchID: job.ID, Err: err})
		return
	}

	pages, err := store.PagesFromResults(results)
	var docID int64
	if err == nil {
		docID, err = w.committer.Commit(ctx, job.Name, job.ExistingID, pages)
	}
	if err != nil {
		logger.Error("batch commit failed", "error", err)
		batchesTotal.WithLabelValues(statusError).Inc()
		w.emit(ctx, BatchFailed{BatchID: job.ID, Err: err})
		return
	}

	batchesTotal.WithLabelValues(statusSuccess).Inc()
	logger.Info("batch committed",
		"document_id", docID,
		"pages", len(results),
		"failed", len(failures),
		"elapsed", time.Since(start).Round(time.Millisecond))
	w.emit(ctx, BatchDone{BatchID: job.ID, DocumentID: docID, Pages: len(results), Failed: failures})
}

// processPages runs every page of job on the pool and collects results on
// the calling goroutine, emitting progress after each one. Results come
// back ordered by page index.
func (w *Worker) processPages(batchCtx, ctx context.Context, pool *Pool, job *Job) ([]*processor.PageResult, []PageFailure) {
	total := len(job.Files)
	outcomes := make(chan pageOutcome, total)

	go func() {
		for i, path := range job.Files {
			task := w.pageTask(batchCtx, job, i, path, outcomes)
			if !pool.Submit(batchCtx, task) {
				outcomes <- pageOutcome{index: i, path: path, err: batchCtx.Err()}
			}
		}
	}()

	var (
		results  []*processor.PageResult
		failures []PageFailure
	)
	for done := 1; done <= total; done++ {
		o := <-outcomes
		if o.err != nil {
			failures = append(failures, PageFailure{Index: o.index, Path: o.path, Err: o.err})
			if batchCtx.Err() == nil {
				w.logger.Warn("page failed", "batch_id", job.ID, "page", o.index, "path", o.path, "error", o.err)
			}
		} else {
			results = append(results, o.result)
		}
		if batchCtx.Err() == nil {
			w.emit(ctx, Progress{BatchID: job.ID, Done: done, Total: total, Percent: percent(done, total)})
		}
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].Index < results[b].Index })
	sort.SliceStable(failures, func(a, b int) bool { return failures[a].Index < failures[b].Index })
	return results, failures
}

func (w *Worker) pageTask(ctx context.Context, job *Job, index int, path string, outcomes chan<- pageOutcome) func() {
	return func() {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				pagesProcessedTotal.WithLabelValues(statusError).Inc()
				outcomes <- pageOutcome{index: index, path: path, err: fmt.Errorf("%w: %v", ErrPagePanic, r)}
			}
		}()

		if err := ctx.Err(); err != nil {
			outcomes <- pageOutcome{index: index, path: path, err: err}
			return
		}
		res, err := w.processor.ProcessImage(ctx, index, path, job.Config)
		pageProcessingDuration.Observe(time.Since(start).Seconds())
		if err == nil && res == nil {
			err = errors.New("processor returned no result")
		}
		if err != nil {
			pagesProcessedTotal.WithLabelValues(statusError).Inc()
			outcomes <- pageOutcome{index: index, path: path, err: err}
			return
		}
		pagesProcessedTotal.WithLabelValues(statusSuccess).Inc()
		res.Index = index
		outcomes <- pageOutcome{index: index, path: path, result: res}
	}
}

// emit sends msg unless ctx has ended.
func (w *Worker) emit(ctx context.Context, msg Message) {
	select {
	case w.out <- msg:
	case <-ctx.Done():
		w.logger.Debug("message dropped", "type", fmt.Sprintf("%T", msg))
	}
}

// cleanup removes the job's temporary directories.
func (w *Worker) cleanup(job *Job) {
	for src, dir := range job.Cleanup {
		if dir == "" {
			continue
		}
		if err := os.RemoveAll(dir); err != nil {
			w.logger.Warn("failed to remove temp dir", "source", src, "dir", dir, "error", err)
		}
	}
}
