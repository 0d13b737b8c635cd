// Package consumer feeds queued review messages into the submission path shared
// with the HTTP API.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"perfreview/internal/domain/performance"
	"perfreview/internal/platform/metrics"
	"perfreview/internal/platform/mq"
	"perfreview/internal/requestctx"
)

const defaultWorkers = 4

type Submitter interface {
	SubmitReview(ctx context.Context, req performance.SubmissionRequest) (performance.SubmissionResponse, error)
}

type Source interface {
	Dequeue(ctx context.Context) <-chan *mq.Delivery
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithDeduper(d *mq.Deduper) Option {
	return func(p *Pool) {
		p.deduper = d
	}
}

func WithMetrics(c *metrics.Collector) Option {
	return func(p *Pool) {
		p.metrics = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// Pool runs a fixed number of workers. A message is acknowledged only after its
// review has been stored; every failure is negatively acknowledged.
type Pool struct {
	source    Source
	submitter Submitter
	workers   int
	deduper   *mq.Deduper
	metrics   *metrics.Collector
	logger    *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(source Source, submitter Submitter, opts ...Option) *Pool {
	p := &Pool{
		source:    source,
		submitter: submitter,
		workers:   defaultWorkers,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "review-consumer")
	return p
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			for delivery := range p.source.Dequeue(ctx) {
				p.handle(ctx, delivery)
			}
			p.logger.Debug("worker stopped", "worker", worker)
		}(i)
	}
}

// Shutdown waits for the workers to drain a closed source. If ctx expires first,
// the workers are cancelled and unfinished messages stay unacknowledged.
func (p *Pool) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		if p.cancel != nil {
			p.cancel()
		}
		<-done
		return fmt.Errorf("consumer shutdown: %w", ctx.Err())
	}
}

func (p *Pool) handle(ctx context.Context, d *mq.Delivery) {
	ctx = requestctx.WithMessageID(ctx, d.ID)
	log := requestctx.Logger(ctx, p.logger).With("attempt", d.Attempt)

	if p.deduper != nil && p.deduper.SeenAndRecord(d.ID) {
		p.metrics.QueueEvent(metrics.QueueDuplicate)
		log.Info("duplicate message skipped")
		d.Ack()
		return
	}

	resp, err := p.process(ctx, d.Payload)
	if err != nil {
		if p.deduper != nil {
			p.deduper.Unrecord(d.ID)
		}
		log.Warn("review message failed", "err", err)
		d.Nack(err)
		return
	}

	p.metrics.ReviewSubmitted(metrics.SourceQueue)
	log.Info("review message stored", "reviewId", resp.ReviewID)
	d.Ack()
}

func (p *Pool) process(ctx context.Context, payload []byte) (performance.SubmissionResponse, error) {
	var req performance.SubmissionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return performance.SubmissionResponse{}, fmt.Errorf("decode review message: %w", err)
	}
	return p.submitter.SubmitReview(ctx, req)
}
