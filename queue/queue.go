// Package queue provides the binary-heap candidate queues used by the HNSW
// neighbor search.
package queue

import "container/heap"

// Compile time check to ensure PriorityQueue satisfies the heap interface.
var _ heap.Interface = (*PriorityQueue)(nil)

// Item is a candidate node and its distance to the query.
type Item struct {
	Node     uint32
	Distance float32
}

// PriorityQueue implements heap.Interface over Items.
//
// With Max unset the queue pops the closest item first (min-heap); with Max set
// it pops the farthest item first, which is how result sets are bounded.
// Equal distances are ordered by node so that pops are reproducible.
type PriorityQueue struct {
	Max   bool
	Items []Item
}

// NewMin returns an empty min-heap.
func NewMin(capacity int) *PriorityQueue {
	return &PriorityQueue{Items: make([]Item, 0, capacity)}
}

// NewMax returns an empty max-heap.
func NewMax(capacity int) *PriorityQueue {
	return &PriorityQueue{Max: true, Items: make([]Item, 0, capacity)}
}

// Len returns the number of elements in the priority queue.
func (pq *PriorityQueue) Len() int { return len(pq.Items) }

// Less reports whether the element with index i should sort before the element with index j.
func (pq *PriorityQueue) Less(i, j int) bool {
	a, b := pq.Items[i], pq.Items[j]
	if a.Distance == b.Distance {
		if pq.Max {
			return a.Node > b.Node
		}
		return a.Node < b.Node
	}
	if pq.Max {
		return a.Distance > b.Distance
	}
	return a.Distance < b.Distance
}

// Swap swaps the elements with indexes i and j.
func (pq *PriorityQueue) Swap(i, j int) {
	pq.Items[i], pq.Items[j] = pq.Items[j], pq.Items[i]
}

// Push adds x to the priority queue. Use PushItem instead.
func (pq *PriorityQueue) Push(x any) {
	pq.Items = append(pq.Items, x.(Item))
}

// Pop removes and returns the last element. Use PopItem instead.
func (pq *PriorityQueue) Pop() any {
	old := pq.Items
	n := len(old)
	item := old[n-1]
	pq.Items = old[:n-1]
	return item
}

// PushItem adds an item, keeping the heap invariant.
func (pq *PriorityQueue) PushItem(it Item) {
	heap.Push(pq, it)
}

// PopItem removes and returns the top item.
func (pq *PriorityQueue) PopItem() Item {
	return heap.Pop(pq).(Item)
}

// Top returns the top item without removing it. The queue must not be empty.
func (pq *PriorityQueue) Top() Item {
	return pq.Items[0]
}

// Drain pops every item and returns them in ascending distance order,
// regardless of heap direction. The queue is empty afterwards.
func (pq *PriorityQueue) Drain() []Item {
	out := make([]Item, pq.Len())
	if pq.Max {
		for i := len(out) - 1; i >= 0; i-- {
			out[i] = pq.PopItem()
		}
		return out
	}
	for i := range out {
		out[i] = pq.PopItem()
	}
	return out
}
