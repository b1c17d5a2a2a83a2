// internal/provider/twilio.go
// Twilio adapter. Unlike the rental vendors, Twilio sells real provisioned
// numbers: Allocate buys an incoming number, Poll lists inbound messages to
// it, and Cancel releases the number so billing stops.

package provider

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/numbay/numbay-backend/internal/config"
)

// twilioCountries maps catalog country names to ISO country codes accepted by
// the available-numbers API. Twilio has no per-product pools; every number is
// a general-purpose "local" product.
var twilioCountries = map[string]string{
	"usa":       "US",
	"canada":    "CA",
	"england":   "GB",
	"germany":   "DE",
	"france":    "FR",
	"australia": "AU",
}

type twilioAllocation struct {
	phoneNumber string
	allocatedAt time.Time
}

// TwilioAdapter implements Adapter using the Twilio REST API
type TwilioAdapter struct {
	client *twilio.RestClient

	mu          sync.Mutex
	allocations map[string]twilioAllocation // handle (number SID) -> allocation
	released    map[string]bool
}

// NewTwilioAdapter creates a Twilio adapter
func NewTwilioAdapter(cfg *config.Config) (Adapter, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, fmt.Errorf("%w: TWILIO_ACCOUNT_SID or TWILIO_AUTH_TOKEN not set", ErrCredentialsMissing)
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})

	return &TwilioAdapter{
		client:      client,
		allocations: make(map[string]twilioAllocation),
		released:    make(map[string]bool),
	}, nil
}

// ID returns the vendor identifier
func (a *TwilioAdapter) ID() string {
	return VendorTwilio
}

// Allocate buys the first available local number in the country
func (a *TwilioAdapter) Allocate(ctx context.Context, product, country, operator string) (Allocation, error) {
	if product != "" && strings.ToLower(product) != "local" && strings.ToLower(product) != "any" {
		return Allocation{}, fmt.Errorf("%w: twilio only sells local numbers, got product %q", ErrInvalidParameters, product)
	}

	countryCode, ok := twilioCountries[strings.ToLower(country)]
	if !ok {
		return Allocation{}, fmt.Errorf("%w: unknown country %q", ErrInvalidParameters, country)
	}

	listParams := &twilioApi.ListAvailablePhoneNumberLocalParams{}
	listParams.SetSmsEnabled(true)
	listParams.SetLimit(1)

	available, err := a.client.Api.ListAvailablePhoneNumberLocal(countryCode, listParams)
	if err != nil {
		return Allocation{}, a.mapError(err)
	}
	if len(available) == 0 || available[0].PhoneNumber == nil {
		return Allocation{}, ErrNoInventory
	}

	createParams := &twilioApi.CreateIncomingPhoneNumberParams{}
	createParams.SetPhoneNumber(*available[0].PhoneNumber)

	number, err := a.client.Api.CreateIncomingPhoneNumber(createParams)
	if err != nil {
		return Allocation{}, a.mapError(err)
	}
	if number.Sid == nil || number.PhoneNumber == nil {
		return Allocation{}, fmt.Errorf("%w: incomplete provisioning response", ErrVendorUnavailable)
	}

	a.mu.Lock()
	a.allocations[*number.Sid] = twilioAllocation{
		phoneNumber: *number.PhoneNumber,
		allocatedAt: time.Now(),
	}
	a.mu.Unlock()

	return Allocation{PhoneNumber: *number.PhoneNumber, Handle: *number.Sid}, nil
}

// Poll lists inbound messages delivered to the number since allocation
func (a *TwilioAdapter) Poll(ctx context.Context, handle string) ([]string, error) {
	a.mu.Lock()
	alloc, ok := a.allocations[handle]
	a.mu.Unlock()
	if !ok {
		return nil, nil
	}

	params := &twilioApi.ListMessageParams{}
	params.SetTo(alloc.phoneNumber)
	params.SetLimit(20)

	messages, err := a.client.Api.ListMessage(params)
	if err != nil {
		log.Printf("twilio: poll %s failed: %v", handle, err)
		return nil, nil
	}

	texts := make([]string, 0, len(messages))
	for _, msg := range messages {
		if msg.Body == nil {
			continue
		}
		if msg.DateCreated != nil {
			created, err := time.Parse(time.RFC1123Z, *msg.DateCreated)
			if err == nil && created.Before(alloc.allocatedAt) {
				continue
			}
		}
		texts = append(texts, *msg.Body)
	}
	return texts, nil
}

// Cancel releases the provisioned number; a second cancel returns false
func (a *TwilioAdapter) Cancel(ctx context.Context, handle string) (bool, error) {
	a.mu.Lock()
	if a.released[handle] {
		a.mu.Unlock()
		return false, nil
	}
	a.mu.Unlock()

	if err := a.client.Api.DeleteIncomingPhoneNumber(handle, nil); err != nil {
		var restErr *twilioclient.TwilioRestError
		if errors.As(err, &restErr) && restErr.Status == 404 {
			// Already gone vendor-side
			a.markReleased(handle)
			return false, nil
		}
		return false, a.mapError(err)
	}

	a.markReleased(handle)
	return true, nil
}

// Resend reports failure: there is nothing Twilio can resend, inbound SMS
// originate with the counterparty
func (a *TwilioAdapter) Resend(ctx context.Context, handle string) (bool, error) {
	return false, nil
}

// ListProducts exposes the single "local" product with live availability
func (a *TwilioAdapter) ListProducts(ctx context.Context, country string) ([]Product, error) {
	countryCode, ok := twilioCountries[strings.ToLower(country)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown country %q", ErrInvalidParameters, country)
	}

	params := &twilioApi.ListAvailablePhoneNumberLocalParams{}
	params.SetSmsEnabled(true)
	params.SetLimit(30)

	available, err := a.client.Api.ListAvailablePhoneNumberLocal(countryCode, params)
	if err != nil {
		return nil, a.mapError(err)
	}

	return []Product{{
		ID:             "local",
		UnitCost:       1.15, // flat monthly list price for a US local number
		AvailableCount: len(available),
	}}, nil
}

func (a *TwilioAdapter) markReleased(handle string) {
	a.mu.Lock()
	a.released[handle] = true
	delete(a.allocations, handle)
	a.mu.Unlock()
}

// mapError normalizes Twilio REST errors into the adapter taxonomy
func (a *TwilioAdapter) mapError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		switch restErr.Status {
		case 401, 403:
			return fmt.Errorf("%w: %s", ErrAuthFailure, restErr.Message)
		case 400:
			return fmt.Errorf("%w: %s", ErrInvalidParameters, restErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
}
