// Package events fans booking change events out to registered consumers.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cleanbuz/booking-sync/internal/storage/models"
)

// Consumer receives the change events of one completed sync run. Consumers
// handle and log their own failures; the publisher never waits on them.
type Consumer interface {
	Name() string
	HandleSync(f models.Feed, result models.SyncResult, changes []models.BookingChange)
}

// delivery is one batched publication: all changes from a single run.
type delivery struct {
	feed    models.Feed
	result  models.SyncResult
	changes []models.BookingChange
}

type subscription struct {
	consumer Consumer
	ch       chan delivery
}

// Publisher delivers change events to zero or more consumers. Each consumer
// gets its own worker and buffered queue, so events stay ordered per consumer
// while a slow or failing consumer cannot stall the others. A consumer whose
// queue fills up loses the batch, with a warning.
type Publisher struct {
	logger *zap.Logger

	mu     sync.Mutex
	subs   []*subscription
	wg     sync.WaitGroup
	closed bool
}

// NewPublisher creates an empty publisher.
func NewPublisher(logger *zap.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Subscribe registers a consumer and starts its delivery worker.
func (p *Publisher) Subscribe(c Consumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	sub := &subscription{
		consumer: c,
		ch:       make(chan delivery, 256),
	}
	p.subs = append(p.subs, sub)

	p.wg.Add(1)
	go p.deliver(sub)

	p.logger.Info("event consumer registered", zap.String("consumer", c.Name()))
}

// Publish hands one run's outcome to every consumer without blocking.
// Changes may be empty: change-free and errored runs are still delivered so
// consumers can observe sync completion and failure.
func (p *Publisher) Publish(f models.Feed, result models.SyncResult, changes []models.BookingChange) {
	d := delivery{feed: f, result: result, changes: changes}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	for _, sub := range p.subs {
		select {
		case sub.ch <- d:
		default:
			p.logger.Warn("consumer queue full, dropping batch",
				zap.String("consumer", sub.consumer.Name()),
				zap.String("feed_id", f.ID),
				zap.Int("changes", len(changes)),
			)
		}
	}
}

// Close stops accepting publications, drains consumer queues, and waits for
// workers to finish.
func (p *Publisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, sub := range p.subs {
		close(sub.ch)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Publisher) deliver(sub *subscription) {
	defer p.wg.Done()

	for d := range sub.ch {
		p.handle(sub.consumer, d)
	}
}

// handle invokes one consumer, recovering from panics so a broken consumer
// cannot take its worker down.
func (p *Publisher) handle(c Consumer, d delivery) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("consumer panicked",
				zap.String("consumer", c.Name()),
				zap.Any("panic", r),
			)
		}
	}()

	c.HandleSync(d.feed, d.result, d.changes)
}
