// Package queue buffers externally supplied messages for the dispatcher.
//
// The queue has two tiers. Priority messages (user replies) are always
// dequeued before normal ones; each tier is FIFO. The queue never bounds its
// size, backpressure belongs to the caller.
package queue

import "sync"

// Message is a queued text message. It is consumed exactly once.
type Message struct {
	Text     string
	Priority bool
}

// Queue is a two-tier FIFO safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	priority []Message
	normal   []Message
}

// New returns an empty queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue appends text to the tail of the normal tier.
func (q *Queue) Enqueue(text string) {
	q.mu.Lock()
	q.normal = append(q.normal, Message{Text: text})
	q.mu.Unlock()
}

// EnqueueFront inserts text ahead of every normal message but behind
// priority messages already queued.
func (q *Queue) EnqueueFront(text string) {
	q.mu.Lock()
	q.priority = append(q.priority, Message{Text: text, Priority: true})
	q.mu.Unlock()
}

// Push enqueues text in the tier selected by priority.
func (q *Queue) Push(text string, priority bool) {
	if priority {
		q.EnqueueFront(text)
		return
	}
	q.Enqueue(text)
}

// Dequeue removes and returns the head of the queue. ok is false when the
// queue is empty.
func (q *Queue) Dequeue() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.priority) > 0 {
		msg := q.priority[0]
		q.priority[0] = Message{}
		q.priority = q.priority[1:]
		return msg, true
	}
	if len(q.normal) > 0 {
		msg := q.normal[0]
		q.normal[0] = Message{}
		q.normal = q.normal[1:]
		return msg, true
	}
	return Message{}, false
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.priority) > 0 {
		return q.priority[0], true
	}
	if len(q.normal) > 0 {
		return q.normal[0], true
	}
	return Message{}, false
}

// Len returns the number of queued messages across both tiers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.priority) + len(q.normal)
}

// Clear empties both tiers.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.priority = nil
	q.normal = nil
	q.mu.Unlock()
}
