package device

import "fmt"

// publishQueue is a fixed-size FIFO ring of entity indices waiting to have
// their state published. The publishPending flag on each entity keeps at
// most one entry per entity, so a ring sized to the registry capacity can
// never overflow; an overflow is a bookkeeping bug and panics.
type publishQueue struct {
	buf  []int
	head int
	n    int
}

func newPublishQueue(capacity int) publishQueue {
	return publishQueue{buf: make([]int, capacity)}
}

func (q *publishQueue) push(idx int) {
	if q.n == len(q.buf) {
		panic(fmt.Sprintf("device: publish queue overflow (capacity %d)", len(q.buf)))
	}
	q.buf[(q.head+q.n)%len(q.buf)] = idx
	q.n++
}

func (q *publishQueue) pop() (int, bool) {
	if q.n == 0 {
		return 0, false
	}
	idx := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.n--
	return idx, true
}

func (q *publishQueue) len() int {
	return q.n
}
