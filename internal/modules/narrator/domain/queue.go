package domain

// QueuedSegment is a segment with its per-guild sequence number. Sequence
// numbers increase monotonically in enqueue order and are never reused, which
// makes playback ordering observable in logs.
type QueuedSegment struct {
	Seq uint64
	Segment
}

// SegmentQueue is a FIFO of narration segments. Insertion order is playback
// order; there is no reordering or priority.
type SegmentQueue struct {
	items   []QueuedSegment
	nextSeq uint64
}

// NewSegmentQueue creates a new empty SegmentQueue.
func NewSegmentQueue() SegmentQueue {
	return SegmentQueue{items: make([]QueuedSegment, 0)}
}

// Len returns the number of queued segments.
func (q *SegmentQueue) Len() int {
	return len(q.items)
}

// IsEmpty returns true if the queue holds no segments.
func (q *SegmentQueue) IsEmpty() bool {
	return len(q.items) == 0
}

// Push appends segments to the tail of the queue in the given order,
// assigning each its sequence number.
func (q *SegmentQueue) Push(segments ...Segment) {
	for _, segment := range segments {
		q.items = append(q.items, QueuedSegment{Seq: q.nextSeq, Segment: segment})
		q.nextSeq++
	}
}

// Pop removes and returns the head of the queue, or nil if empty.
func (q *SegmentQueue) Pop() *QueuedSegment {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	q.items = q.items[1:]
	return &head
}

// Peek returns the head of the queue without removing it, or nil if empty.
func (q *SegmentQueue) Peek() *QueuedSegment {
	if len(q.items) == 0 {
		return nil
	}
	head := q.items[0]
	return &head
}

// List returns a copy of all queued segments in playback order.
func (q *SegmentQueue) List() []QueuedSegment {
	result := make([]QueuedSegment, len(q.items))
	copy(result, q.items)
	return result
}

// Clear drops all queued segments and returns how many were dropped.
// Sequence numbering continues from where it left off.
func (q *SegmentQueue) Clear() int {
	dropped := len(q.items)
	q.items = q.items[:0]
	return dropped
}
