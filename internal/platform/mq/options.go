package mq

import (
	"time"

	"perfreview/internal/platform/metrics"
)

type Option func(*InMemoryQueue)

// WithCapacity bounds the number of messages waiting for a first delivery.
func WithCapacity(capacity int) Option {
	return func(q *InMemoryQueue) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithMaxAttempts sets how many deliveries a message gets before it is dead-lettered.
func WithMaxAttempts(attempts int) Option {
	return func(q *InMemoryQueue) {
		if attempts > 0 {
			q.maxAttempts = attempts
		}
	}
}

func WithRedeliveryDelay(delay time.Duration) Option {
	return func(q *InMemoryQueue) {
		if delay >= 0 {
			q.redeliveryDelay = delay
		}
	}
}

func WithMetrics(collector *metrics.Collector) Option {
	return func(q *InMemoryQueue) {
		q.metrics = collector
	}
}
