package orchestrator

import (
	"context"
	"sort"
	"sync"
)

// runQueue admits at most limit runs at once. Waiting runs are admitted
// highest priority first, and in arrival order within a priority.
type runQueue struct {
	mu      sync.Mutex
	limit   int
	active  int
	waiting []*queuedRun
}

type queuedRun struct {
	id       string
	priority int
	ready    chan struct{}
}

func newRunQueue(limit int) *runQueue {
	if limit < 1 {
		limit = 1
	}
	return &runQueue{limit: limit}
}

// acquire blocks until the run holds a slot or ctx is done. It returns
// false when ctx ended first; the caller then holds no slot.
func (q *runQueue) acquire(ctx context.Context, id string, priority int) bool {
	q.mu.Lock()
	if q.active < q.limit {
		q.active++
		q.mu.Unlock()
		return true
	}
	w := &queuedRun{id: id, priority: priority, ready: make(chan struct{})}
	q.waiting = append(q.waiting, w)
	sort.SliceStable(q.waiting, func(i, j int) bool {
		return q.waiting[i].priority > q.waiting[j].priority
	})
	q.mu.Unlock()

	select {
	case <-w.ready:
		return true
	case <-ctx.Done():
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	select {
	case <-w.ready:
		// Admitted while being cancelled; pass the slot on.
		q.releaseLocked()
	default:
		for i, other := range q.waiting {
			if other == w {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				break
			}
		}
	}
	return false
}

// release frees a slot taken by acquire.
func (q *runQueue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.releaseLocked()
}

// releaseLocked hands the slot to the first waiting run, if any.
func (q *runQueue) releaseLocked() {
	if len(q.waiting) == 0 {
		q.active--
		return
	}
	next := q.waiting[0]
	q.waiting = q.waiting[1:]
	close(next.ready)
}

// queued returns the IDs of waiting runs in admission order.
func (q *runQueue) queued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.waiting))
	for i, w := range q.waiting {
		ids[i] = w.id
	}
	return ids
}
