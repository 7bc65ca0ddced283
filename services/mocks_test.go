package services

import (
	"context"
	"errors"
	"sync"

	"cart-monitor-service/models"
)

// ---- mock catalog ----

type mockCatalog struct {
	names map[string]string
	// slow product ids block until the lookup context ends
	slow map[string]bool
	// failing product ids return a transport error
	failing map[string]bool

	mu    sync.Mutex
	calls []string
}

func (m *mockCatalog) GetProduct(ctx context.Context, productID string) (*Product, error) {
	m.mu.Lock()
	m.calls = append(m.calls, productID)
	m.mu.Unlock()

	if m.slow[productID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.failing[productID] {
		return nil, errors.New("connection refused")
	}
	name, ok := m.names[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &Product{ID: productID, Name: name}, nil
}

// ---- mock bus ----

type published struct {
	destination string
	key         string
	payload     []byte
}

type mockBus struct {
	mu        sync.Mutex
	messages  []published
	failUsers map[string]bool
	closed    int
	onPublish func()
}

func (m *mockBus) Publish(_ context.Context, destination, key string, payload []byte) (string, error) {
	if m.onPublish != nil {
		m.onPublish()
	}
	event, err := models.ParseAbandonmentEvent(payload)
	if err != nil {
		return "", err
	}
	if m.failUsers[event.UserID] {
		return "", errors.New("broker unavailable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, published{destination: destination, key: key, payload: append([]byte(nil), payload...)})
	return "msg-" + event.UserID, nil
}

func (m *mockBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *mockBus) events() []models.AbandonmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.AbandonmentEvent, 0, len(m.messages))
	for _, msg := range m.messages {
		e, _ := models.ParseAbandonmentEvent(msg.payload)
		out = append(out, e)
	}
	return out
}

// ---- mock observer ----

type mockObserver struct {
	passes []PassStats
}

func (m *mockObserver) ObservePass(stats PassStats) {
	m.passes = append(m.passes, stats)
}
