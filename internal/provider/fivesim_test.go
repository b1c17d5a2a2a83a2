// internal/provider/fivesim_test.go

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbay/numbay-backend/internal/config"
)

func newFiveSimAdapter(t *testing.T, handler http.HandlerFunc) Adapter {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter, err := NewFiveSimAdapter(&config.Config{
		FiveSimAPIKey:      "test-token",
		FiveSimBaseURL:     srv.URL,
		AllocateProbeDelay: time.Millisecond,
		VendorTimeout:      time.Second,
	})
	require.NoError(t, err)
	return adapter
}

func TestFiveSimRequiresToken(t *testing.T) {
	_, err := NewFiveSimAdapter(&config.Config{})
	assert.ErrorIs(t, err, ErrCredentialsMissing)
}

func TestFiveSimAllocate(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/user/buy/activation/india/any/telegram", r.URL.Path)
		fmt.Fprint(w, `{"id":635821,"phone":"+919990001122","status":"PENDING"}`)
	})

	alloc, err := adapter.Allocate(context.Background(), "Telegram", "India", "")
	require.NoError(t, err)
	assert.Equal(t, "+919990001122", alloc.PhoneNumber)
	assert.Equal(t, "635821", alloc.Handle)
}

func TestFiveSimAllocateProbesOperators(t *testing.T) {
	var paths []string
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if len(paths) < 3 {
			fmt.Fprint(w, "no free phones")
			return
		}
		fmt.Fprint(w, `{"id":7,"phone":"+79990000007","status":"PENDING"}`)
	})

	alloc, err := adapter.Allocate(context.Background(), "telegram", "russia", "")
	require.NoError(t, err)
	assert.Equal(t, "+79990000007", alloc.PhoneNumber)
	assert.Equal(t, []string{
		"/user/buy/activation/russia/any/telegram",
		"/user/buy/activation/russia/virtual21/telegram",
		"/user/buy/activation/russia/virtual4/telegram",
	}, paths)
}

func TestFiveSimAllocatePinnedOperatorNotProbed(t *testing.T) {
	requests := 0
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/user/buy/activation/russia/virtual21/telegram", r.URL.Path)
		fmt.Fprint(w, "no free phones")
	})

	_, err := adapter.Allocate(context.Background(), "telegram", "russia", "virtual21")
	assert.ErrorIs(t, err, ErrNoInventory)
	assert.Equal(t, 1, requests)
}

func TestFiveSimAllocateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
		expected error
	}{
		{"no inventory", http.StatusOK, "no free phones", ErrNoInventory},
		{"no balance", http.StatusOK, "not enough user balance", ErrNoInventory},
		{"bad country", http.StatusOK, "bad country", ErrInvalidParameters},
		{"unauthorized", http.StatusUnauthorized, "", ErrAuthFailure},
		{"garbage", http.StatusOK, "WAT", ErrVendorUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.response)
			})

			_, err := adapter.Allocate(context.Background(), "telegram", "russia", "any")
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestFiveSimPoll(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/check/635821", r.URL.Path)
		fmt.Fprint(w, `{"id":635821,"phone":"+919990001122","status":"RECEIVED","sms":[{"text":"Your OTP is 482913","code":"482913"},{"text":"","code":"7731"}]}`)
	})

	messages, err := adapter.Poll(context.Background(), "635821")
	require.NoError(t, err)
	assert.Equal(t, []string{"Your OTP is 482913", "7731"}, messages)
}

func TestFiveSimPollCancelledOrder(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":635821,"phone":"+919990001122","status":"CANCELED","sms":[{"text":"late message"}]}`)
	})

	messages, err := adapter.Poll(context.Background(), "635821")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestFiveSimPollSwallowsErrors(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	messages, err := adapter.Poll(context.Background(), "635821")
	assert.NoError(t, err)
	assert.Empty(t, messages)
}

func TestFiveSimCancel(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/cancel/635821", r.URL.Path)
		fmt.Fprint(w, `{"id":635821,"status":"CANCELED"}`)
	})

	ok, err := adapter.Cancel(context.Background(), "635821")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFiveSimCancelFinishedOrder(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, "order no longer active")
	})

	ok, err := adapter.Cancel(context.Background(), "635821")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFiveSimCancelAuthFailure(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := adapter.Cancel(context.Background(), "635821")
	assert.ErrorIs(t, err, ErrAuthFailure)
}

func TestFiveSimResendUnsupported(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("resend must not call the vendor")
	})

	ok, err := adapter.Resend(context.Background(), "635821")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFiveSimListProducts(t *testing.T) {
	adapter := newFiveSimAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/guest/products/russia/any", r.URL.Path)
		fmt.Fprint(w, `{"telegram":{"Category":"activation","Qty":1000,"Price":12.5},"1day":{"Category":"hosting","Qty":5,"Price":80}}`)
	})

	products, err := adapter.ListProducts(context.Background(), "russia")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "telegram", products[0].ID)
	assert.Equal(t, 12.5, products[0].UnitCost)
	assert.Equal(t, 1000, products[0].AvailableCount)
}
