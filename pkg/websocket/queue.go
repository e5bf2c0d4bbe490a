package websocket

import "sync"

// Message is a decoded inbound frame. Frames are surfaced as generic JSON
// objects; filtering by message type is left to the consumer.
type Message map[string]interface{}

// Queue is the hand-off point between the connection's read goroutine and
// the consumer: an unbounded, thread-safe FIFO with an explicit close
// signal. Push never blocks the producer; consumption blocks while the
// queue is empty and ends once the close signal is reached. Items are
// delivered in the exact order enqueued, to one consumer each.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Message
	closed bool
}

// NewQueue creates an empty, open queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a message and wakes a blocked consumer if one is waiting.
// Messages pushed after Close are dropped: the close signal is always the
// last thing a consumer observes.
func (q *Queue) Push(msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
}

// Pop blocks until a message is available or the queue is closed and
// drained. The second return value is false once the close signal is
// reached; no message is ever returned after that.
func (q *Queue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

// Close marks the end of the stream. Messages already enqueued are still
// delivered; blocked consumers wake once the backlog drains. Close may be
// called from any goroutine and is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Drain returns a channel producing the queue's messages in FIFO order.
// The channel closes when the queue's close signal is reached. Drain is
// single-pass: messages taken by one Drain call are never replayed by
// another.
func (q *Queue) Drain() <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			msg, ok := q.Pop()
			if !ok {
				return
			}
			out <- msg
		}
	}()
	return out
}
