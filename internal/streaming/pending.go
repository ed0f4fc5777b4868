package streaming

import "sync"

// PendingQueue stages sequenced segments until the feeder drips them into
// the window.
type PendingQueue struct {
	mu    sync.Mutex
	items []Segment
}

// NewPendingQueue creates an empty queue
func NewPendingQueue() *PendingQueue {
	return &PendingQueue{}
}

// Push appends segments in order
func (q *PendingQueue) Push(segs ...Segment) {
	if len(segs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, segs...)
	q.mu.Unlock()
}

// Pop removes the oldest segment
func (q *PendingQueue) Pop() (Segment, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Segment{}, false
	}
	seg := q.items[0]
	q.items[0] = Segment{}
	q.items = q.items[1:]
	return seg, true
}

// Len returns the number of staged segments
func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear drops every staged segment
func (q *PendingQueue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
