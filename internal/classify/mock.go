package classify

import (
	"context"
	"sync"
	"time"

	"bond-arena/internal/game"
)

// MockClassifier implements Classifier for tests. It returns a configured
// result or error, optionally after a delay, and records every call.
type MockClassifier struct {
	mu sync.Mutex

	result    *Identification
	err       error
	delay     time.Duration
	available bool

	Calls []game.Composition
}

// NewMockClassifier creates an available mock that names molecules after
// their formula.
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{available: true}
}

// WithResult configures the identification returned by Identify.
func (m *MockClassifier) WithResult(id *Identification) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = id
	return m
}

// WithError configures the error returned by Identify.
func (m *MockClassifier) WithError(err error) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay makes Identify wait before answering, honouring ctx.
func (m *MockClassifier) WithDelay(d time.Duration) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithAvailable configures Available.
func (m *MockClassifier) WithAvailable(available bool) *MockClassifier {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.available = available
	return m
}

// Identify implements Classifier.
func (m *MockClassifier) Identify(ctx context.Context, comp game.Composition) (*Identification, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, comp)
	result, err, delay := m.result, m.err, m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if result != nil {
		out := *result
		return &out, nil
	}
	return &Identification{Formula: comp.Formula(), Name: "Mock " + comp.Formula(), Source: "mock"}, nil
}

// Available implements Classifier.
func (m *MockClassifier) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available
}

// CallCount returns the number of Identify calls.
func (m *MockClassifier) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
