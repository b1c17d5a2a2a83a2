// internal/numbers/service_test.go

package numbers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numbay/numbay-backend/internal/config"
	"github.com/numbay/numbay-backend/internal/provider"
)

// recordingSink captures lifecycle events for assertions
type recordingSink struct {
	mu      sync.Mutex
	updates []string
	otps    map[string][]OTP
	expired []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{otps: make(map[string][]OTP)}
}

func (s *recordingSink) OTPUpdate(phoneNumber string, otps []OTP) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, phoneNumber)
	s.otps[phoneNumber] = otps
}

func (s *recordingSink) NumberExpired(phoneNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired = append(s.expired, phoneNumber)
}

func (s *recordingSink) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

func (s *recordingSink) expiredNumbers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.expired))
	copy(out, s.expired)
	return out
}

// newTestService wires the lifecycle manager to the mock vendor. The poll
// interval is effectively disabled so tests drive polling via CheckOTPs.
func newTestService(t *testing.T, lifetime time.Duration) (Service, *provider.MockAdapter, *MemoryStore, *recordingSink) {
	t.Helper()

	cfg := &config.Config{
		EnableMockVendor:   true,
		VendorTimeout:      time.Second,
		AllocateProbeDelay: time.Millisecond,
	}
	registry := provider.NewRegistry(cfg)
	require.NoError(t, registry.Select(provider.VendorMock))

	adapter, err := registry.Get(provider.VendorMock)
	require.NoError(t, err)
	mock := adapter.(*provider.MockAdapter)

	store := NewMemoryStore()
	sink := newRecordingSink()

	svc := NewService(registry, store, sink, &Config{
		Lifetime:          lifetime,
		PollInterval:      time.Hour,
		VendorTimeout:     time.Second,
		SweepInterval:     time.Hour,
		TerminalRetention: time.Hour,
	})
	t.Cleanup(svc.Shutdown)

	return svc, mock, store, sink
}

func requestNumber(t *testing.T, svc Service) *Record {
	t.Helper()

	rec, err := svc.RequestNumber(context.Background(), &RequestNumberRequest{
		Product: "telegram",
		Country: "india",
	})
	require.NoError(t, err)
	return rec
}

func TestRequestNumber(t *testing.T) {
	svc, _, store, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)
	assert.NotEmpty(t, rec.ID)
	assert.NotEmpty(t, rec.PhoneNumber)
	assert.Equal(t, provider.VendorMock, rec.VendorID)
	assert.Equal(t, "telegram", rec.Product)
	assert.Equal(t, StatusActive, rec.Status)
	assert.Empty(t, rec.OTPs)
	assert.True(t, rec.ExpiresAt.After(rec.CreatedAt))

	stored, err := store.Get(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, stored.ID)

	active, err := svc.GetActiveNumbers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rec.PhoneNumber, active[0].PhoneNumber)
}

func TestRequestNumberAllocationFailure(t *testing.T) {
	svc, mock, store, _ := newTestService(t, time.Hour)
	mock.AllocateErr = provider.ErrNoInventory

	_, err := svc.RequestNumber(context.Background(), &RequestNumberRequest{
		Product: "telegram",
		Country: "india",
	})
	assert.ErrorIs(t, err, provider.ErrNoInventory)

	records, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCheckOTPsExtractsAndTransitions(t *testing.T) {
	svc, mock, store, sink := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)
	mock.QueueMessage(rec.VendorHandle, "Your OTP is 482913")

	otps, err := svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	require.Len(t, otps, 1)
	assert.Equal(t, "482913", otps[0].Code)
	assert.Equal(t, provider.VendorMock, otps[0].Source)

	got, err := svc.GetNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, got.Status)

	stored, err := store.Get(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, stored.Status)
	require.Len(t, stored.OTPs, 1)

	assert.Equal(t, 1, sink.updateCount())
}

func TestCheckOTPsDeduplicatesCodes(t *testing.T) {
	svc, mock, _, sink := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)
	mock.QueueMessage(rec.VendorHandle, "OTP: 1234, code 1234")

	otps, err := svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	require.Len(t, otps, 1)
	assert.Equal(t, "1234", otps[0].Code)

	// Polling the same message again must not duplicate the code or re-emit
	// the event
	otps, err = svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Len(t, otps, 1)
	assert.Equal(t, 1, sink.updateCount())

	// A genuinely new code is appended
	mock.QueueMessage(rec.VendorHandle, "Your code is 5678")
	otps, err = svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	require.Len(t, otps, 2)
	assert.Equal(t, "5678", otps[1].Code)
	assert.Equal(t, 2, sink.updateCount())
}

func TestCheckOTPsUnknownNumber(t *testing.T) {
	svc, _, _, _ := newTestService(t, time.Hour)

	_, err := svc.CheckOTPs(context.Background(), "+10000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelNumber(t *testing.T) {
	svc, mock, store, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)

	ok, err := svc.CancelNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mock.Cancelled(rec.VendorHandle))

	_, err = store.Get(ctx, rec.PhoneNumber)
	assert.ErrorIs(t, err, ErrNotFound)

	active, err := svc.GetActiveNumbers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// The record is gone, so a second cancel reports not found
	_, err = svc.CancelNumber(ctx, rec.PhoneNumber)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelNumberVendorFailureKeepsRecord(t *testing.T) {
	svc, mock, _, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)
	mock.CancelErr = provider.ErrVendorUnavailable

	_, err := svc.CancelNumber(ctx, rec.PhoneNumber)
	assert.ErrorIs(t, err, provider.ErrVendorUnavailable)

	// The cancel can be retried once the vendor recovers
	got, err := svc.GetNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	mock.CancelErr = nil
	ok, err := svc.CancelNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.True(t, ok)
}

// racingAdapter cancels the number while its own poll is in flight, modeling
// a cancel call that lands between the vendor request and the response
type racingAdapter struct {
	*provider.MockAdapter
	svc   Service
	phone string
	once  sync.Once
}

func (a *racingAdapter) Poll(ctx context.Context, handle string) ([]string, error) {
	var msgs []string
	a.once.Do(func() {
		_, _ = a.svc.CancelNumber(context.Background(), a.phone)
		msgs = []string{"Your OTP is 482913"}
	})
	return msgs, nil
}

func TestCancelWinsRaceWithLatePoll(t *testing.T) {
	svc, mock, store, sink := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)

	impl := svc.(*service)
	tr := impl.lookup(rec.PhoneNumber)
	require.NotNil(t, tr)

	tr.mu.Lock()
	tr.adapter = &racingAdapter{MockAdapter: mock, svc: svc, phone: rec.PhoneNumber}
	tr.mu.Unlock()

	impl.pollOnce(tr)

	// The cancel that landed mid-poll wins; the late result never resurrects
	// the record or appends its code
	tr.mu.Lock()
	assert.Equal(t, StatusCancelled, tr.rec.Status)
	assert.Empty(t, tr.rec.OTPs)
	tr.mu.Unlock()

	_, err := store.Get(ctx, rec.PhoneNumber)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, sink.updateCount())
}

func TestExpiryReleasesNumber(t *testing.T) {
	svc, mock, store, sink := newTestService(t, 50*time.Millisecond)
	ctx := context.Background()

	rec := requestNumber(t, svc)

	require.Eventually(t, func() bool {
		stored, err := store.Get(ctx, rec.PhoneNumber)
		return err == nil && stored.Status == StatusExpired
	}, 2*time.Second, 10*time.Millisecond)

	// The vendor allocation was released exactly once
	assert.True(t, mock.Cancelled(rec.VendorHandle))
	assert.Equal(t, 1, mock.CancelCalls)
	assert.Equal(t, []string{rec.PhoneNumber}, sink.expiredNumbers())

	// Expired records leave the active set but stay readable
	active, err := svc.GetActiveNumbers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := svc.GetNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	// Terminal records answer OTP checks from storage without a vendor call
	polls := mock.PollCalls
	otps, err := svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Empty(t, otps)
	assert.Equal(t, polls, mock.PollCalls)

	// Resend on a terminal record fails without contacting the vendor
	ok, err := svc.ResendOTP(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, mock.ResendCalls)
}

func TestReceivedNumberDoesNotExpire(t *testing.T) {
	svc, mock, _, sink := newTestService(t, 150*time.Millisecond)
	ctx := context.Background()

	rec := requestNumber(t, svc)
	mock.QueueMessage(rec.VendorHandle, "Your OTP is 482913")

	_, err := svc.CheckOTPs(ctx, rec.PhoneNumber)
	require.NoError(t, err)

	time.Sleep(400 * time.Millisecond)

	got, err := svc.GetNumber(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusReceived, got.Status)
	assert.False(t, mock.Cancelled(rec.VendorHandle))
	assert.Empty(t, sink.expiredNumbers())
}

func TestResendOTP(t *testing.T) {
	svc, mock, _, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	rec := requestNumber(t, svc)

	ok, err := svc.ResendOTP(ctx, rec.PhoneNumber)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, mock.ResendCalls)

	_, err = svc.ResendOTP(ctx, "+10000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRestoreReTracksLiveRecords(t *testing.T) {
	cfg := &config.Config{
		EnableMockVendor:   true,
		VendorTimeout:      time.Second,
		AllocateProbeDelay: time.Millisecond,
	}
	registry := provider.NewRegistry(cfg)
	require.NoError(t, registry.Select(provider.VendorMock))

	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	live := &Record{
		ID:           "rec-live",
		PhoneNumber:  "+15005550001",
		VendorID:     provider.VendorMock,
		VendorHandle: "MOCK-1",
		Product:      "telegram",
		Country:      "india",
		OTPs:         []OTP{},
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		Status:       StatusActive,
	}
	stale := &Record{
		ID:           "rec-stale",
		PhoneNumber:  "+15005550002",
		VendorID:     provider.VendorMock,
		VendorHandle: "MOCK-2",
		Product:      "telegram",
		Country:      "india",
		OTPs:         []OTP{},
		CreatedAt:    now.Add(-2 * time.Hour),
		ExpiresAt:    now.Add(-time.Hour),
		Status:       StatusActive,
	}
	require.NoError(t, store.Put(ctx, live))
	require.NoError(t, store.Put(ctx, stale))

	svc := NewService(registry, store, nil, &Config{
		Lifetime:          time.Hour,
		PollInterval:      time.Hour,
		VendorTimeout:     time.Second,
		SweepInterval:     time.Hour,
		TerminalRetention: time.Hour,
	})
	t.Cleanup(svc.Shutdown)

	require.NoError(t, svc.Restore(ctx))

	active, err := svc.GetActiveNumbers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "+15005550001", active[0].PhoneNumber)

	// The stale record was expired in place
	got, err := store.Get(ctx, "+15005550002")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)
}
