// internal/provider/adapter.go

package provider

import (
	"context"
	"errors"
)

// Vendor identifiers
const (
	VendorSMSActivate = "smsactivate"
	VendorFiveSim     = "fivesim"
	VendorTwilio      = "twilio"
	VendorMock        = "mock"
)

var (
	// ErrCredentialsMissing means an adapter cannot be constructed because its
	// vendor credentials are not configured.
	ErrCredentialsMissing = errors.New("vendor credentials missing")

	// ErrNoProviderAvailable means no configured vendor qualifies for selection.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrUnknownProvider means the vendor identifier is not recognized.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrInvalidParameters means the vendor rejected the product/country/operator.
	ErrInvalidParameters = errors.New("invalid allocation parameters")

	// ErrNoInventory means the vendor has no available number for the combination.
	ErrNoInventory = errors.New("no numbers available")

	// ErrAuthFailure means the vendor rejected the configured credentials.
	ErrAuthFailure = errors.New("vendor rejected credentials")

	// ErrVendorUnavailable covers transport-level failures and timeouts.
	ErrVendorUnavailable = errors.New("vendor unavailable")
)

// Allocation is one vendor-side number allocation. The Handle is the
// vendor-internal activation id used for all follow-up calls; it is never
// exposed to API callers.
type Allocation struct {
	PhoneNumber string
	Handle      string
}

// Product is one entry of a vendor's catalog for a country.
type Product struct {
	ID             string  `json:"id"`
	UnitCost       float64 `json:"unit_cost"`
	AvailableCount int     `json:"available_count"`
}

// Adapter translates the uniform provider contract into one vendor's wire
// protocol. Implementations own vendor credentials, endpoint URLs and response
// parsing; the lifecycle manager never branches on vendor identity.
type Adapter interface {
	// ID returns the vendor identifier.
	ID() string

	// Allocate requests a number for the product/country/operator combination.
	// When operator is empty the adapter probes its vendor-specific variants in
	// a fixed preference order. The returned allocation is billable at the
	// vendor until cancelled or it expires vendor-side.
	Allocate(ctx context.Context, product, country, operator string) (Allocation, error)

	// Poll returns any raw message bodies delivered to the allocation so far.
	// Transient vendor failures yield an empty result, not an error, so the
	// polling cadence is unaffected by one bad call.
	Poll(ctx context.Context, handle string) ([]string, error)

	// Cancel releases the vendor-side allocation. Safe to call more than once:
	// a second cancel on an already-cancelled handle returns false without
	// an error.
	Cancel(ctx context.Context, handle string) (bool, error)

	// Resend asks the vendor to repeat the SMS. Vendors that accept the request
	// do not all guarantee a resend actually happens.
	Resend(ctx context.Context, handle string) (bool, error)

	// ListProducts returns the vendor catalog for a country, used to validate
	// allocation parameters before spending a vendor call and to surface live
	// pricing.
	ListProducts(ctx context.Context, country string) ([]Product, error)
}
