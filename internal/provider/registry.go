// internal/provider/registry.go

package provider

import (
	"fmt"
	"sync"

	"github.com/numbay/numbay-backend/internal/config"
)

// fallbackOrder is the fixed priority applied when no vendor was explicitly
// selected. The mock vendor is deliberately absent: simulated vendors must be
// selected explicitly.
var fallbackOrder = []string{VendorSMSActivate, VendorFiveSim, VendorTwilio}

// VendorStatus reports whether a vendor is usable, without any network call.
type VendorStatus struct {
	ID         string `json:"id"`
	Configured bool   `json:"configured"`
	Selected   bool   `json:"selected"`
}

// Registry resolves vendor identifiers to cached Adapter instances and holds
// the process-wide "current" selection.
type Registry struct {
	cfg *config.Config

	mu       sync.RWMutex
	adapters map[string]Adapter
	selected string
}

// NewRegistry creates a provider registry. Adapters are constructed lazily so
// an unconfigured vendor only fails when it is actually requested.
func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		cfg:      cfg,
		adapters: make(map[string]Adapter),
	}
}

// Get returns the cached adapter for a vendor, constructing it on first use.
// Construction validates credentials and fails fast with ErrCredentialsMissing;
// it never silently substitutes a different vendor.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	if adapter, ok := r.adapters[id]; ok {
		r.mu.RUnlock()
		return adapter, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock
	if adapter, ok := r.adapters[id]; ok {
		return adapter, nil
	}

	adapter, err := r.build(id)
	if err != nil {
		return nil, err
	}

	r.adapters[id] = adapter
	return adapter, nil
}

// Select sets the process-wide current vendor. The adapter is constructed
// eagerly so selection of an unconfigured vendor fails immediately.
func (r *Registry) Select(id string) error {
	if _, err := r.Get(id); err != nil {
		return err
	}

	r.mu.Lock()
	r.selected = id
	r.mu.Unlock()
	return nil
}

// Current returns the selected vendor's adapter. If none was explicitly
// selected, the fixed fallback order is applied over configured vendors.
func (r *Registry) Current() (Adapter, error) {
	r.mu.RLock()
	selected := r.selected
	r.mu.RUnlock()

	if selected != "" {
		return r.Get(selected)
	}

	for _, id := range fallbackOrder {
		if !r.configured(id) {
			continue
		}
		adapter, err := r.Get(id)
		if err != nil {
			continue
		}
		return adapter, nil
	}

	return nil, ErrNoProviderAvailable
}

// Status reports whether a vendor's credentials are configured, without
// attempting any network call.
func (r *Registry) Status(id string) (VendorStatus, error) {
	if !r.known(id) {
		return VendorStatus{}, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}

	r.mu.RLock()
	selected := r.selected
	r.mu.RUnlock()

	return VendorStatus{
		ID:         id,
		Configured: r.configured(id),
		Selected:   selected == id,
	}, nil
}

// List reports the status of every known vendor.
func (r *Registry) List() []VendorStatus {
	ids := []string{VendorSMSActivate, VendorFiveSim, VendorTwilio}
	if r.cfg.EnableMockVendor {
		ids = append(ids, VendorMock)
	}

	statuses := make([]VendorStatus, 0, len(ids))
	for _, id := range ids {
		status, err := r.Status(id)
		if err != nil {
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// build constructs one adapter, validating credentials
func (r *Registry) build(id string) (Adapter, error) {
	switch id {
	case VendorSMSActivate:
		return NewSMSActivateAdapter(r.cfg)
	case VendorFiveSim:
		return NewFiveSimAdapter(r.cfg)
	case VendorTwilio:
		return NewTwilioAdapter(r.cfg)
	case VendorMock:
		if !r.cfg.EnableMockVendor {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
		}
		return NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
}

func (r *Registry) known(id string) bool {
	switch id {
	case VendorSMSActivate, VendorFiveSim, VendorTwilio:
		return true
	case VendorMock:
		return r.cfg.EnableMockVendor
	}
	return false
}

// configured checks credential presence only; no adapter is constructed
func (r *Registry) configured(id string) bool {
	switch id {
	case VendorSMSActivate:
		return r.cfg.SMSActivateAPIKey != ""
	case VendorFiveSim:
		return r.cfg.FiveSimAPIKey != ""
	case VendorTwilio:
		return r.cfg.TwilioAccountSID != "" && r.cfg.TwilioAuthToken != ""
	case VendorMock:
		return r.cfg.EnableMockVendor
	}
	return false
}
