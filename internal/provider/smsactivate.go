// internal/provider/smsactivate.go
// SMS-Activate adapter. The vendor authenticates with an API key passed as a
// query-string parameter and answers most calls with plain-text sentinel
// strings rather than JSON.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/numbay/numbay-backend/internal/config"
)

// smsActivateServices maps catalog product names to the vendor's service
// codes. The "any" product has two short-lived generic variants the vendor
// only makes available intermittently, so allocation probes them in order.
var smsActivateServices = map[string][]string{
	"telegram":  {"tg"},
	"whatsapp":  {"wa"},
	"google":    {"go"},
	"facebook":  {"fb"},
	"instagram": {"ig"},
	"viber":     {"vi"},
	"uber":      {"ub"},
	"amazon":    {"am"},
	"any":       {"ot", "full"},
}

// smsActivateCountries maps catalog country names to the vendor's numeric ids
var smsActivateCountries = map[string]string{
	"russia":    "0",
	"ukraine":   "1",
	"china":     "3",
	"india":     "22",
	"indonesia": "6",
	"england":   "16",
	"usa":       "187",
	"germany":   "43",
	"france":    "78",
	"vietnam":   "10",
}

// SMSActivateAdapter implements Adapter for sms-activate.org
type SMSActivateAdapter struct {
	apiKey     string
	baseURL    string
	probeDelay time.Duration
	client     *http.Client
}

// NewSMSActivateAdapter creates an SMS-Activate adapter
func NewSMSActivateAdapter(cfg *config.Config) (Adapter, error) {
	if cfg.SMSActivateAPIKey == "" {
		return nil, fmt.Errorf("%w: SMSACTIVATE_API_KEY not set", ErrCredentialsMissing)
	}

	return &SMSActivateAdapter{
		apiKey:     cfg.SMSActivateAPIKey,
		baseURL:    cfg.SMSActivateBaseURL,
		probeDelay: cfg.AllocateProbeDelay,
		client:     &http.Client{Timeout: cfg.VendorTimeout},
	}, nil
}

// ID returns the vendor identifier
func (a *SMSActivateAdapter) ID() string {
	return VendorSMSActivate
}

// Allocate requests a number, probing generic service variants in order
func (a *SMSActivateAdapter) Allocate(ctx context.Context, product, country, operator string) (Allocation, error) {
	services, ok := smsActivateServices[strings.ToLower(product)]
	if !ok {
		return Allocation{}, fmt.Errorf("%w: unknown product %q", ErrInvalidParameters, product)
	}

	countryID, ok := smsActivateCountries[strings.ToLower(country)]
	if !ok {
		return Allocation{}, fmt.Errorf("%w: unknown country %q", ErrInvalidParameters, country)
	}

	var lastErr error
	for i, service := range services {
		if i > 0 {
			// Fixed spacing between probes keeps the vendor's rate limiter happy
			select {
			case <-time.After(a.probeDelay):
			case <-ctx.Done():
				return Allocation{}, fmt.Errorf("%w: %v", ErrVendorUnavailable, ctx.Err())
			}
		}

		params := url.Values{
			"action":  {"getNumber"},
			"service": {service},
			"country": {countryID},
		}
		if operator != "" {
			params.Set("operator", operator)
		}

		body, err := a.call(ctx, params)
		if err != nil {
			lastErr = err
			continue
		}

		if strings.HasPrefix(body, "ACCESS_NUMBER:") {
			// ACCESS_NUMBER:<activation id>:<phone>
			parts := strings.SplitN(body, ":", 3)
			if len(parts) != 3 {
				lastErr = fmt.Errorf("%w: malformed allocation response %q", ErrVendorUnavailable, body)
				continue
			}
			phone := parts[2]
			if !strings.HasPrefix(phone, "+") {
				phone = "+" + phone
			}
			return Allocation{PhoneNumber: phone, Handle: parts[1]}, nil
		}

		switch {
		case body == "NO_NUMBERS":
			lastErr = ErrNoInventory
		case body == "BAD_KEY":
			lastErr = ErrAuthFailure
		case body == "BAD_SERVICE" || body == "WRONG_SERVICE" || body == "BAD_ACTION":
			lastErr = fmt.Errorf("%w: vendor rejected %q", ErrInvalidParameters, service)
		case body == "NO_BALANCE":
			lastErr = fmt.Errorf("%w: account balance exhausted", ErrNoInventory)
		default:
			lastErr = fmt.Errorf("%w: unexpected response %q", ErrVendorUnavailable, body)
		}
	}

	return Allocation{}, lastErr
}

// Poll fetches the full SMS text for an activation. Transient failures yield
// an empty result so the lifecycle loop's cadence is unaffected.
func (a *SMSActivateAdapter) Poll(ctx context.Context, handle string) ([]string, error) {
	body, err := a.call(ctx, url.Values{
		"action": {"getFullSms"},
		"id":     {handle},
	})
	if err != nil {
		log.Printf("smsactivate: poll %s failed: %v", handle, err)
		return nil, nil
	}

	if strings.HasPrefix(body, "FULL_SMS:") {
		text := strings.TrimPrefix(body, "FULL_SMS:")
		if text == "" {
			return nil, nil
		}
		return []string{text}, nil
	}

	// STATUS_WAIT_CODE, STATUS_WAIT_RETRY and friends all mean "nothing yet"
	return nil, nil
}

// Cancel releases the activation. Cancelling an already-cancelled handle
// returns false without an error.
func (a *SMSActivateAdapter) Cancel(ctx context.Context, handle string) (bool, error) {
	body, err := a.call(ctx, url.Values{
		"action": {"setStatus"},
		"status": {"8"}, // 8 = cancel activation
		"id":     {handle},
	})
	if err != nil {
		return false, err
	}

	switch body {
	case "ACCESS_CANCEL":
		return true, nil
	case "EARLY_CANCEL_DENIED", "BAD_STATUS", "WRONG_ACTIVATION_ID", "NO_ACTIVATION":
		return false, nil
	case "BAD_KEY":
		return false, ErrAuthFailure
	}
	return false, nil
}

// Resend asks the vendor to send another SMS to the same activation
func (a *SMSActivateAdapter) Resend(ctx context.Context, handle string) (bool, error) {
	body, err := a.call(ctx, url.Values{
		"action": {"setStatus"},
		"status": {"3"}, // 3 = request another code
		"id":     {handle},
	})
	if err != nil {
		return false, err
	}
	return body == "ACCESS_RETRY_GET", nil
}

// ListProducts queries per-service pricing and availability for a country
func (a *SMSActivateAdapter) ListProducts(ctx context.Context, country string) ([]Product, error) {
	countryID, ok := smsActivateCountries[strings.ToLower(country)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown country %q", ErrInvalidParameters, country)
	}

	body, err := a.call(ctx, url.Values{
		"action":  {"getPrices"},
		"country": {countryID},
	})
	if err != nil {
		return nil, err
	}

	if body == "BAD_KEY" {
		return nil, ErrAuthFailure
	}

	// {"<country>":{"<service>":{"cost":12.5,"count":140}}}
	var parsed map[string]map[string]struct {
		Cost  float64 `json:"cost"`
		Count int     `json:"count"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed price response: %v", ErrVendorUnavailable, err)
	}

	services, ok := parsed[countryID]
	if !ok {
		return nil, nil
	}

	products := make([]Product, 0, len(services))
	for product, codes := range smsActivateServices {
		for _, code := range codes {
			entry, ok := services[code]
			if !ok {
				continue
			}
			products = append(products, Product{
				ID:             product,
				UnitCost:       entry.Cost,
				AvailableCount: entry.Count,
			})
			break
		}
	}
	return products, nil
}

// call performs one API request and returns the trimmed response body
func (a *SMSActivateAdapter) call(ctx context.Context, params url.Values) (string, error) {
	params.Set("api_key", a.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrVendorUnavailable, resp.StatusCode)
	}

	return strings.TrimSpace(string(body)), nil
}
