package tasks

import (
	"fmt"
	"sync"

	"github.com/desertthunder/crosstrim/internal/models"
)

// WorkQueue is an unbounded FIFO of [models.BatchRecord] shared by the batch workers.
//
// Push never blocks. Pop blocks until a record is available. Close appends one sentinel
// per worker after everything already pushed, so each worker drains the real work before it stops.
type WorkQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []models.BatchRecord
	closed bool
}

// NewWorkQueue creates an empty queue.
func NewWorkQueue() *WorkQueue {
	q := &WorkQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a real record. It fails once the queue is closed.
func (q *WorkQueue) Push(r models.BatchRecord) error {
	if r.IsSentinel() {
		return fmt.Errorf("cannot push an empty record")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("work queue is closed")
	}
	q.items = append(q.items, r)
	q.cond.Signal()
	return nil
}

// Close enqueues exactly workers sentinels and rejects further pushes. Closing twice is a no-op.
func (q *WorkQueue) Close(workers int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for i := 0; i < workers; i++ {
		q.items = append(q.items, models.Sentinel())
	}
	q.cond.Broadcast()
}

// Pop removes and returns the oldest record, waiting until one exists.
func (q *WorkQueue) Pop() models.BatchRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	r := q.items[0]
	q.items[0] = models.BatchRecord{}
	q.items = q.items[1:]
	return r
}

// Len returns the number of queued records, sentinels included.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
