// internal/provider/fivesim.go
// 5sim adapter. The vendor authenticates with a bearer token and answers in
// JSON, except for a handful of plain-text error sentinels ("no free phones",
// "not enough user balance") that come back with a 200 status.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/numbay/numbay-backend/internal/config"
)

// fiveSimOperators is the preference order probed when the caller does not
// pin an operator. The virtual pools come and go, so "any" is tried first.
var fiveSimOperators = []string{"any", "virtual21", "virtual4"}

// FiveSimAdapter implements Adapter for 5sim.net
type FiveSimAdapter struct {
	token      string
	baseURL    string
	probeDelay time.Duration
	client     *http.Client
}

// NewFiveSimAdapter creates a 5sim adapter
func NewFiveSimAdapter(cfg *config.Config) (Adapter, error) {
	if cfg.FiveSimAPIKey == "" {
		return nil, fmt.Errorf("%w: FIVESIM_API_KEY not set", ErrCredentialsMissing)
	}

	return &FiveSimAdapter{
		token:      cfg.FiveSimAPIKey,
		baseURL:    strings.TrimRight(cfg.FiveSimBaseURL, "/"),
		probeDelay: cfg.AllocateProbeDelay,
		client:     &http.Client{Timeout: cfg.VendorTimeout},
	}, nil
}

// ID returns the vendor identifier
func (a *FiveSimAdapter) ID() string {
	return VendorFiveSim
}

type fiveSimOrder struct {
	ID     int64  `json:"id"`
	Phone  string `json:"phone"`
	Status string `json:"status"`
	SMS    []struct {
		Text string `json:"text"`
		Code string `json:"code"`
	} `json:"sms"`
}

// Allocate buys an activation, probing operator variants in order when none
// was pinned by the caller
func (a *FiveSimAdapter) Allocate(ctx context.Context, product, country, operator string) (Allocation, error) {
	operators := []string{operator}
	if operator == "" {
		operators = fiveSimOperators
	}

	product = strings.ToLower(product)
	country = strings.ToLower(country)

	var lastErr error
	for i, op := range operators {
		if i > 0 {
			select {
			case <-time.After(a.probeDelay):
			case <-ctx.Done():
				return Allocation{}, fmt.Errorf("%w: %v", ErrVendorUnavailable, ctx.Err())
			}
		}

		path := fmt.Sprintf("/user/buy/activation/%s/%s/%s", country, op, product)
		status, body, err := a.call(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}

		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return Allocation{}, ErrAuthFailure
		}

		text := strings.TrimSpace(string(body))
		switch text {
		case "no free phones", "no product":
			lastErr = ErrNoInventory
			continue
		case "not enough user balance", "not enough rating":
			lastErr = fmt.Errorf("%w: %s", ErrNoInventory, text)
			continue
		case "bad country", "bad operator", "select operator", "country is incorrect":
			lastErr = fmt.Errorf("%w: %s", ErrInvalidParameters, text)
			continue
		}

		var order fiveSimOrder
		if err := json.Unmarshal(body, &order); err != nil {
			lastErr = fmt.Errorf("%w: malformed buy response %q", ErrVendorUnavailable, text)
			continue
		}

		if order.ID == 0 || order.Phone == "" {
			lastErr = fmt.Errorf("%w: incomplete buy response", ErrVendorUnavailable)
			continue
		}

		return Allocation{
			PhoneNumber: order.Phone,
			Handle:      fmt.Sprintf("%d", order.ID),
		}, nil
	}

	return Allocation{}, lastErr
}

// Poll checks the order and returns any delivered message texts
func (a *FiveSimAdapter) Poll(ctx context.Context, handle string) ([]string, error) {
	status, body, err := a.call(ctx, "/user/check/"+handle)
	if err != nil {
		log.Printf("fivesim: poll %s failed: %v", handle, err)
		return nil, nil
	}

	if status != http.StatusOK {
		log.Printf("fivesim: poll %s returned status %d", handle, status)
		return nil, nil
	}

	var order fiveSimOrder
	if err := json.Unmarshal(body, &order); err != nil {
		log.Printf("fivesim: poll %s malformed response: %v", handle, err)
		return nil, nil
	}

	switch order.Status {
	case "CANCELED", "TIMEOUT", "BANNED":
		return nil, nil
	}

	texts := make([]string, 0, len(order.SMS))
	for _, sms := range order.SMS {
		if sms.Text != "" {
			texts = append(texts, sms.Text)
		} else if sms.Code != "" {
			texts = append(texts, sms.Code)
		}
	}
	return texts, nil
}

// Cancel cancels the order. A handle that is already finished or cancelled
// returns false without an error.
func (a *FiveSimAdapter) Cancel(ctx context.Context, handle string) (bool, error) {
	status, body, err := a.call(ctx, "/user/cancel/"+handle)
	if err != nil {
		return false, err
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return false, ErrAuthFailure
	case http.StatusOK:
	default:
		// "order not found" / "order no longer active" style rejections
		return false, nil
	}

	var order fiveSimOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return false, nil
	}
	return order.Status == "CANCELED", nil
}

// Resend reports failure: 5sim has no resend endpoint, the vendor just keeps
// delivering whatever arrives at the number
func (a *FiveSimAdapter) Resend(ctx context.Context, handle string) (bool, error) {
	return false, nil
}

type fiveSimProduct struct {
	Category string  `json:"Category"`
	Qty      int     `json:"Qty"`
	Price    float64 `json:"Price"`
}

// ListProducts returns the activation catalog for a country
func (a *FiveSimAdapter) ListProducts(ctx context.Context, country string) ([]Product, error) {
	country = strings.ToLower(country)

	status, body, err := a.call(ctx, "/guest/products/"+country+"/any")
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return nil, ErrAuthFailure
	}

	text := strings.TrimSpace(string(body))
	if text == "country is incorrect" {
		return nil, fmt.Errorf("%w: unknown country %q", ErrInvalidParameters, country)
	}

	var parsed map[string]fiveSimProduct
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed product response", ErrVendorUnavailable)
	}

	products := make([]Product, 0, len(parsed))
	for id, entry := range parsed {
		if entry.Category != "activation" {
			continue
		}
		products = append(products, Product{
			ID:             id,
			UnitCost:       entry.Price,
			AvailableCount: entry.Qty,
		})
	}
	return products, nil
}

// call performs one API request and returns the status code and body
func (a *FiveSimAdapter) call(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrVendorUnavailable, err)
	}

	return resp.StatusCode, body, nil
}
