package storage

import (
	apperror "chat-relay/internal/error"
)

type queuedItem[T any] struct {
	value T
	cost  int
}

// BoundedQueue keeps the most recent items whose summed token cost fits in a fixed budget.
// Items are evicted oldest first. A single item costing more than the budget is kept alone,
// so TotalCost may exceed Budget only when Len is 1.
//
// BoundedQueue is not safe for concurrent use; callers serialize access per conversation.
type BoundedQueue[T any] struct {
	items  []queuedItem[T]
	budget int
	total  int
}

// ------------------------------------------------------------------------------------------------------
// NewBoundedQueue creates an empty queue holding at most budget tokens
func NewBoundedQueue[T any](budget int) (*BoundedQueue[T], error) {
	if budget < 0 {
		return nil, apperror.NewInvalidBudgetError(budget)
	}

	return &BoundedQueue[T]{
		items:  make([]queuedItem[T], 0),
		budget: budget,
	}, nil
}

// ------------------------------------------------------------------------------------------------------
// Enqueue appends value with its precomputed cost and evicts from the head until the budget holds
func (q *BoundedQueue[T]) Enqueue(value T, cost int) {
	if cost < 0 {
		cost = 0
	}

	q.items = append(q.items, queuedItem[T]{value: value, cost: cost})
	q.total += cost

	q.trimToBudget()
}

// ------------------------------------------------------------------------------------------------------
func (q *BoundedQueue[T]) trimToBudget() {
	evicted := 0
	for q.total > q.budget && len(q.items)-evicted > 1 {
		q.total -= q.items[evicted].cost
		evicted++
	}

	if evicted == 0 {
		return
	}

	// Zero the dropped slots so their values can be collected.
	var zero queuedItem[T]
	for i := 0; i < evicted; i++ {
		q.items[i] = zero
	}
	q.items = q.items[evicted:]
}

// ------------------------------------------------------------------------------------------------------
// GetAll returns the retained items, oldest first
func (q *BoundedQueue[T]) GetAll() []T {
	result := make([]T, len(q.items))
	for i, item := range q.items {
		result[i] = item.value
	}
	return result
}

// ------------------------------------------------------------------------------------------------------
// Clone returns an independent copy sharing no backing storage with q
func (q *BoundedQueue[T]) Clone() *BoundedQueue[T] {
	items := make([]queuedItem[T], len(q.items))
	copy(items, q.items)

	return &BoundedQueue[T]{
		items:  items,
		budget: q.budget,
		total:  q.total,
	}
}

func (q *BoundedQueue[T]) Len() int       { return len(q.items) }
func (q *BoundedQueue[T]) TotalCost() int { return q.total }
func (q *BoundedQueue[T]) Budget() int    { return q.budget }
