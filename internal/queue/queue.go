package queue

import (
	"container/heap"
	"errors"
	"sync"

	"spool/internal/job"
)

// ErrDuplicate is returned when an id is already queued.
var ErrDuplicate = errors.New("job already queued")

// Entry is one queued job reference.
type Entry struct {
	ID       job.ID
	Priority job.Priority
	Seq      uint64
}

// Queue orders pending job ids by priority, then by insertion order.
// It is safe for concurrent use.
type Queue struct {
	mu    sync.Mutex
	items entryHeap
	index map[job.ID]*heapItem
	seq   uint64
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{index: make(map[job.ID]*heapItem)}
}

// Enqueue adds an id at the given priority.
func (q *Queue) Enqueue(id job.ID, priority job.Priority) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, exists := q.index[id]; exists {
		return Entry{}, ErrDuplicate
	}
	q.seq++
	item := &heapItem{entry: Entry{ID: id, Priority: priority, Seq: q.seq}}
	heap.Push(&q.items, item)
	q.index[id] = item
	return item.entry, nil
}

// DequeueHighest removes and returns the highest-priority, oldest entry.
func (q *Queue) DequeueHighest() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.items.Len() == 0 {
		return Entry{}, false
	}
	item := heap.Pop(&q.items).(*heapItem)
	delete(q.index, item.entry.ID)
	return item.entry, true
}

// Remove deletes an id if present.
func (q *Queue) Remove(id job.ID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.index[id]
	if !ok {
		return false
	}
	heap.Remove(&q.items, item.index)
	delete(q.index, id)
	return true
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Position returns the 1-based dequeue position of id, or 0 when absent.
func (q *Queue) Position(id job.ID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.index[id]
	if !ok {
		return 0
	}
	pos := 1
	for _, other := range q.items {
		if other != item && other.entry.before(item.entry) {
			pos++
		}
	}
	return pos
}

func (e Entry) before(other Entry) bool {
	if e.Priority != other.Priority {
		return e.Priority > other.Priority
	}
	return e.Seq < other.Seq
}

type heapItem struct {
	entry Entry
	index int
}

type entryHeap []*heapItem

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool { return h[i].entry.before(h[j].entry) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	item := x.(*heapItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
