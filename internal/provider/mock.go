// internal/provider/mock.go

package provider

import (
	"context"
	"fmt"
	"sync"
)

// MockAdapter implements Adapter for testing and local development. It never
// participates in fallback selection; it must be selected explicitly.
type MockAdapter struct {
	mu        sync.Mutex
	nextID    int
	messages  map[string][]string
	cancelled map[string]bool

	// Call counters inspected by tests
	PollCalls   int
	CancelCalls int
	ResendCalls int

	// Optional failure injection
	AllocateErr error
	CancelErr   error
}

// NewMockAdapter creates a mock vendor adapter
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		messages:  make(map[string][]string),
		cancelled: make(map[string]bool),
	}
}

// ID returns the vendor identifier
func (a *MockAdapter) ID() string {
	return VendorMock
}

// Allocate hands out sequential fake numbers
func (a *MockAdapter) Allocate(ctx context.Context, product, country, operator string) (Allocation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.AllocateErr != nil {
		return Allocation{}, a.AllocateErr
	}

	a.nextID++
	handle := fmt.Sprintf("MOCK-%d", a.nextID)
	a.messages[handle] = nil
	return Allocation{
		PhoneNumber: fmt.Sprintf("+1500555%04d", a.nextID),
		Handle:      handle,
	}, nil
}

// Poll returns every message queued so far for the handle
func (a *MockAdapter) Poll(ctx context.Context, handle string) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.PollCalls++
	if a.cancelled[handle] {
		return nil, nil
	}
	msgs := a.messages[handle]
	out := make([]string, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Cancel marks the handle cancelled; a second cancel returns false
func (a *MockAdapter) Cancel(ctx context.Context, handle string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.CancelCalls++
	if a.CancelErr != nil {
		return false, a.CancelErr
	}
	if a.cancelled[handle] {
		return false, nil
	}
	a.cancelled[handle] = true
	return true, nil
}

// Resend succeeds for any live handle
func (a *MockAdapter) Resend(ctx context.Context, handle string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.ResendCalls++
	if a.cancelled[handle] {
		return false, nil
	}
	_, ok := a.messages[handle]
	return ok, nil
}

// ListProducts returns a fixed single-product catalog
func (a *MockAdapter) ListProducts(ctx context.Context, country string) ([]Product, error) {
	return []Product{{ID: "any", UnitCost: 0.10, AvailableCount: 1000}}, nil
}

// QueueMessage makes a message available to subsequent polls of the handle
func (a *MockAdapter) QueueMessage(handle, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages[handle] = append(a.messages[handle], text)
}

// Cancelled reports whether the handle has been cancelled
func (a *MockAdapter) Cancelled(handle string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelled[handle]
}
