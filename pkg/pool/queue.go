package pool

const minQueueCapacity = 16

// taskQueue is an unbounded FIFO ring buffer. It is not safe for
// concurrent use; the pool lock guards every call.
type taskQueue struct {
	buf  []Task
	head int
	size int
}

func (q *taskQueue) Len() int {
	return q.size
}

func (q *taskQueue) Push(task Task) {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = task
	q.size++
}

// Pop removes and returns the front task, or nil if the queue is empty.
func (q *taskQueue) Pop() Task {
	if q.size == 0 {
		return nil
	}
	task := q.buf[q.head]
	// Drop the reference so the closure can be collected once it has run.
	q.buf[q.head] = nil
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	if q.size == 0 {
		q.head = 0
	}
	return task
}

func (q *taskQueue) grow() {
	newCap := max(2*len(q.buf), minQueueCapacity)
	buf := make([]Task, newCap)
	for i := range q.size {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
