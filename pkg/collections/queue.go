package collections

// Queue is a FIFO queue backed by a slice with a moving head. Consumed
// slots are zeroed so dequeued values can be collected.
type Queue[T any] struct {
	data []T
	head int
}

// NewQueue creates a queue with room for capacity values.
func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{data: make([]T, 0, capacity)}
}

// Enqueue appends v.
func (q *Queue[T]) Enqueue(v T) {
	q.data = append(q.data, v)
}

// Dequeue removes the oldest value.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head >= len(q.data) {
		return zero, false
	}
	v := q.data[q.head]
	q.data[q.head] = zero
	q.head++
	if q.head == len(q.data) {
		q.data = q.data[:0]
		q.head = 0
	} else if q.head >= 1024 && q.head > len(q.data)/2 {
		n := copy(q.data, q.data[q.head:])
		q.data = q.data[:n]
		q.head = 0
	}
	return v, true
}

// Len returns the number of queued values.
func (q *Queue[T]) Len() int { return len(q.data) - q.head }

// IsEmpty reports whether the queue is empty.
func (q *Queue[T]) IsEmpty() bool { return q.Len() == 0 }
