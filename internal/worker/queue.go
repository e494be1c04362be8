package worker

import (
	"context"
	"sync"
)

// queue is the inbound FIFO. A nil entry is the shutdown sentinel.
type queue struct {
	mu     sync.Mutex
	items  []*Job
	notify chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// push appends job, or the sentinel when job is nil. Nothing is accepted
// after the sentinel.
func (q *queue) push(job *Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	if job == nil {
		q.closed = true
	}
	q.items = append(q.items, job)
	q.signal()
	return true
}

// pop blocks until an entry is available. ok is false when ctx ended.
// claim runs for a non-nil job before the queue lock is released, so the
// job is never out of the queue without also being claimed.
func (q *queue) pop(ctx context.Context, claim func(*Job)) (job *Job, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job = q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			if job != nil && claim != nil {
				claim(job)
			}
			if len(q.items) > 0 {
				q.signal()
			}
			q.mu.Unlock()
			return job, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// remove takes a queued job out by id.
func (q *queue) remove(id string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, job := range q.items {
		if job != nil && job.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return job, true
		}
	}
	return nil, false
}

// drain empties the queue and returns the jobs that never ran.
func (q *queue) drain() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	var jobs []*Job
	for _, job := range q.items {
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	q.items = nil
	q.closed = true
	return jobs
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, job := range q.items {
		if job != nil {
			n++
		}
	}
	return n
}
