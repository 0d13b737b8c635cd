// Package mq is an in-process message queue with at-least-once delivery. A message
// leaves the queue only when a consumer acknowledges it; negative acknowledgements
// schedule a redelivery until the attempt budget is spent.
package mq

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"perfreview/internal/platform/metrics"
)

const (
	defaultCapacity        = 1024
	defaultMaxAttempts     = 5
	defaultRedeliveryDelay = time.Second
)

type Message struct {
	ID          string
	Payload     []byte
	Attempt     int
	PublishedAt time.Time
}

type DeadLetter struct {
	Message Message
	Reason  string
}

// Delivery is one attempt at a message. Exactly one of Ack or Nack takes effect;
// later calls are ignored.
type Delivery struct {
	Message
	queue   *InMemoryQueue
	settled atomic.Bool
}

func (d *Delivery) Ack() {
	if d.settled.CompareAndSwap(false, true) {
		d.queue.ack()
	}
}

func (d *Delivery) Nack(reason error) {
	if d.settled.CompareAndSwap(false, true) {
		d.queue.nack(d.Message, reason)
	}
}

type InMemoryQueue struct {
	capacity        int
	maxAttempts     int
	redeliveryDelay time.Duration
	metrics         *metrics.Collector

	mu          sync.Mutex
	pending     []Message
	inflight    int
	scheduled   int
	closed      bool
	deadLetters []DeadLetter

	// notify wakes one waiting consumer; woken consumers pass the signal on while
	// work remains.
	notify chan struct{}
}

func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:        defaultCapacity,
		maxAttempts:     defaultMaxAttempts,
		redeliveryDelay: defaultRedeliveryDelay,
		notify:          make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Publish enqueues payload under a fresh message id.
func (q *InMemoryQueue) Publish(ctx context.Context, payload []byte) (Message, error) {
	return q.PublishWithID(ctx, uuid.NewString(), payload)
}

// PublishWithID enqueues payload under a caller-chosen id, so producers retrying a
// publish can be deduplicated by consumers.
func (q *InMemoryQueue) PublishWithID(ctx context.Context, id string, payload []byte) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	msg := Message{
		ID:          id,
		Payload:     append([]byte(nil), payload...),
		Attempt:     1,
		PublishedAt: time.Now().UTC(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return Message{}, ErrQueueClosed
	}
	if len(q.pending) >= q.capacity {
		q.mu.Unlock()
		return Message{}, ErrQueueFull
	}
	q.pending = append(q.pending, msg)
	depth := len(q.pending)
	q.mu.Unlock()

	q.metrics.QueueEvent(metrics.QueuePublished)
	q.metrics.SetQueueDepth(depth)
	q.signal()
	return msg, nil
}

// Dequeue streams deliveries until ctx ends, or until the queue is closed and every
// message has been settled. Each consumer calls Dequeue once.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan *Delivery {
	out := make(chan *Delivery)
	go func() {
		defer close(out)
		for {
			msg, ok, done := q.next()
			if done {
				// Let other consumers observe the drained state too.
				q.signal()
				return
			}
			if !ok {
				select {
				case <-q.notify:
					continue
				case <-ctx.Done():
					return
				}
			}

			delivery := &Delivery{Message: msg, queue: q}
			select {
			case out <- delivery:
			case <-ctx.Done():
				q.requeueFront(msg)
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) next() (msg Message, ok bool, done bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Message{}, false, q.closed && q.inflight == 0 && q.scheduled == 0
	}
	msg = q.pending[0]
	q.pending = q.pending[1:]
	q.inflight++
	if len(q.pending) > 0 {
		q.signal()
	}
	q.metrics.SetQueueDepth(len(q.pending))
	return msg, true, false
}

func (q *InMemoryQueue) requeueFront(msg Message) {
	q.mu.Lock()
	q.inflight--
	q.pending = append([]Message{msg}, q.pending...)
	q.mu.Unlock()
	q.signal()
}

func (q *InMemoryQueue) ack() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
	q.metrics.QueueEvent(metrics.QueueAcked)
	q.signal()
}

func (q *InMemoryQueue) nack(msg Message, reason error) {
	q.mu.Lock()
	q.inflight--
	if msg.Attempt >= q.maxAttempts {
		dl := DeadLetter{Message: msg}
		if reason != nil {
			dl.Reason = reason.Error()
		}
		q.deadLetters = append(q.deadLetters, dl)
		q.mu.Unlock()
		q.metrics.QueueEvent(metrics.QueueDeadLettered)
		q.signal()
		return
	}

	msg.Attempt++
	if q.redeliveryDelay == 0 {
		q.pending = append(q.pending, msg)
		q.mu.Unlock()
		q.metrics.QueueEvent(metrics.QueueRedelivered)
		q.signal()
		return
	}
	q.scheduled++
	q.mu.Unlock()
	q.metrics.QueueEvent(metrics.QueueRedelivered)

	time.AfterFunc(q.redeliveryDelay, func() {
		q.mu.Lock()
		q.scheduled--
		q.pending = append(q.pending, msg)
		q.mu.Unlock()
		q.signal()
	})
}

func (q *InMemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Close rejects further publishes. Consumers keep receiving queued messages and
// redeliveries until everything is settled.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len reports messages waiting for delivery, excluding in-flight ones.
func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *InMemoryQueue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.deadLetters))
	copy(out, q.deadLetters)
	return out
}
