package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cart-monitor-service/common/logger"
	"cart-monitor-service/models"

	"go.uber.org/zap"
)

var ErrBusClosed = errors.New("message bus closed")

// MessageBus sends a payload to a named destination and returns the id the
// broker assigned to the message. key identifies the owning user; backends
// use it for partitioning or message attributes.
type MessageBus interface {
	Publish(ctx context.Context, destination, key string, payload []byte) (string, error)
	Close() error
}

// BusFactory builds the underlying bus client.
type BusFactory func(ctx context.Context) (MessageBus, error)

// LazyBus is the process wide bus handle. The client is built on the first
// publish, shared by every later publish and closed once by Close. A failed
// construction is retried on the next publish.
type LazyBus struct {
	factory BusFactory

	mu     sync.Mutex
	bus    MessageBus
	closed bool
}

func NewLazyBus(factory BusFactory) *LazyBus {
	return &LazyBus{factory: factory}
}

func (l *LazyBus) get(ctx context.Context) (MessageBus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrBusClosed
	}
	if l.bus == nil {
		bus, err := l.factory(ctx)
		if err != nil {
			return nil, fmt.Errorf("init message bus: %w", err)
		}
		l.bus = bus
	}
	return l.bus, nil
}

func (l *LazyBus) Publish(ctx context.Context, destination, key string, payload []byte) (string, error) {
	bus, err := l.get(ctx)
	if err != nil {
		return "", err
	}
	return bus.Publish(ctx, destination, key, payload)
}

// Close shuts the client down if it was ever built. Later publishes fail
// with ErrBusClosed.
func (l *LazyBus) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.bus == nil {
		return nil
	}
	return l.bus.Close()
}

// EventPublisher emits one AbandonmentEvent per cart record to a fixed
// destination. It never retries.
type EventPublisher struct {
	bus         MessageBus
	destination string
	timeout     time.Duration
	log         *zap.Logger
}

func NewEventPublisher(bus MessageBus, destination string, timeout time.Duration, log *zap.Logger) *EventPublisher {
	return &EventPublisher{
		bus:         bus,
		destination: destination,
		timeout:     timeout,
		log:         log.With(zap.String("component", "event_publisher")),
	}
}

func (p *EventPublisher) Publish(ctx context.Context, record models.CartRecord) models.PublishOutcome {
	log := logger.For(ctx, p.log).With(zap.String("user_id", record.UserID), zap.String("destination", p.destination))

	payload, err := models.NewAbandonmentEvent(record).Marshal()
	if err != nil {
		log.Error("Failed to encode abandonment event", zap.Error(err))
		return models.PublishOutcome{Error: err.Error()}
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	messageID, err := p.bus.Publish(ctx, p.destination, record.UserID, payload)
	if err != nil {
		log.Error("Failed to publish abandonment event", zap.Error(err))
		return models.PublishOutcome{Error: err.Error()}
	}

	log.Info("Published abandoned cart", zap.String("message_id", messageID), zap.Int("items", len(record.Items)))
	return models.PublishOutcome{Success: true, MessageID: messageID}
}
