// internal/numbers/service.go
// Virtual number lifecycle manager: owns the registry of allocated numbers,
// runs the periodic polling loop, enforces expiry, and emits lifecycle events.

package numbers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/numbay/numbay-backend/internal/otpextract"
	"github.com/numbay/numbay-backend/internal/provider"
)

// EventSink receives lifecycle events for subscribed clients
type EventSink interface {
	OTPUpdate(phoneNumber string, otps []OTP)
	NumberExpired(phoneNumber string)
}

// Config holds lifecycle timing parameters
type Config struct {
	Lifetime          time.Duration
	PollInterval      time.Duration
	VendorTimeout     time.Duration
	SweepInterval     time.Duration
	TerminalRetention time.Duration
}

// Service defines the lifecycle manager interface
type Service interface {
	RequestNumber(ctx context.Context, req *RequestNumberRequest) (*Record, error)
	GetActiveNumbers(ctx context.Context) ([]*Record, error)
	GetNumber(ctx context.Context, phoneNumber string) (*Record, error)
	CheckOTPs(ctx context.Context, phoneNumber string) ([]OTP, error)
	CancelNumber(ctx context.Context, phoneNumber string) (bool, error)
	ResendOTP(ctx context.Context, phoneNumber string) (bool, error)
	Restore(ctx context.Context) error
	Shutdown()
}

// tracked is the live state of one allocated number. All mutation of the
// record goes through t.mu, so the poll task, the expiry task and explicit
// API calls never write concurrently.
type tracked struct {
	mu      sync.Mutex
	rec     *Record
	adapter provider.Adapter

	expiry   *time.Timer
	stop     chan struct{}
	stopOnce sync.Once
}

// stopTimers halts the poll loop and the expiry timer together so a late
// firing can never mutate a dead record
func (t *tracked) stopTimers() {
	t.stopOnce.Do(func() {
		close(t.stop)
		if t.expiry != nil {
			t.expiry.Stop()
		}
	})
}

// service implements the lifecycle manager
type service struct {
	registry *provider.Registry
	store    Store
	events   EventSink
	cfg      *Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	tracked map[string]*tracked
}

// NewService creates the lifecycle manager and starts the terminal-record
// sweeper
func NewService(registry *provider.Registry, store Store, events EventSink, cfg *Config) Service {
	if cfg == nil {
		cfg = &Config{
			Lifetime:          10 * time.Minute,
			PollInterval:      5 * time.Second,
			VendorTimeout:     10 * time.Second,
			SweepInterval:     time.Hour,
			TerminalRetention: 24 * time.Hour,
		}
	}
	if events == nil {
		events = nopSink{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &service{
		registry: registry,
		store:    store,
		events:   events,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		tracked:  make(map[string]*tracked),
	}

	s.wg.Add(1)
	go s.runSweeper()

	return s
}

// RequestNumber allocates a number from the current vendor and registers it.
// Adapter failures propagate verbatim; a record only enters the registry
// after the vendor allocation fully succeeds.
func (s *service) RequestNumber(ctx context.Context, req *RequestNumberRequest) (*Record, error) {
	adapter, err := s.registry.Current()
	if err != nil {
		return nil, err
	}

	alloc, err := adapter.Allocate(ctx, req.Product, req.Country, req.Operator)
	if err != nil {
		allocationsTotal.WithLabelValues(adapter.ID(), "error").Inc()
		return nil, err
	}
	allocationsTotal.WithLabelValues(adapter.ID(), "ok").Inc()

	now := time.Now()
	rec := &Record{
		ID:           uuid.NewString(),
		PhoneNumber:  alloc.PhoneNumber,
		VendorID:     adapter.ID(),
		VendorHandle: alloc.Handle,
		Product:      req.Product,
		Country:      req.Country,
		Operator:     req.Operator,
		OTPs:         []OTP{},
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.Lifetime),
		Status:       StatusActive,
	}

	if err := s.store.Put(ctx, rec); err != nil {
		// Roll back the vendor allocation so a failed request never leaves a
		// half-registered, billable number
		if _, cerr := adapter.Cancel(ctx, alloc.Handle); cerr != nil {
			log.Printf("numbers: rollback cancel failed for %s: %v", alloc.PhoneNumber, cerr)
		}
		return nil, err
	}

	s.track(rec, adapter)
	return rec.Clone(), nil
}

// GetActiveNumbers returns every number still in the active or received state
func (s *service) GetActiveNumbers(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	entries := make([]*tracked, 0, len(s.tracked))
	for _, t := range s.tracked {
		entries = append(entries, t)
	}
	s.mu.RUnlock()

	records := make([]*Record, 0, len(entries))
	for _, t := range entries {
		t.mu.Lock()
		if !t.rec.Status.Terminal() {
			records = append(records, t.rec.Clone())
		}
		t.mu.Unlock()
	}
	return records, nil
}

// GetNumber returns the record for a phone number
func (s *service) GetNumber(ctx context.Context, phoneNumber string) (*Record, error) {
	if t := s.lookup(phoneNumber); t != nil {
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.rec.Clone(), nil
	}
	return s.store.Get(ctx, phoneNumber)
}

// CheckOTPs forces an immediate out-of-band poll and returns the stored OTPs.
// Polling-time vendor errors are absorbed; the caller at worst sees an
// unchanged result.
func (s *service) CheckOTPs(ctx context.Context, phoneNumber string) ([]OTP, error) {
	t := s.lookup(phoneNumber)
	if t == nil {
		rec, err := s.store.Get(ctx, phoneNumber)
		if err != nil {
			return nil, err
		}
		return rec.OTPs, nil
	}

	s.pollOnce(t)

	t.mu.Lock()
	defer t.mu.Unlock()
	otps := make([]OTP, len(t.rec.OTPs))
	copy(otps, t.rec.OTPs)
	return otps, nil
}

// CancelNumber cancels the vendor-side allocation and removes the record.
// The local state only changes once the vendor confirms, so a failed cancel
// can be retried.
func (s *service) CancelNumber(ctx context.Context, phoneNumber string) (bool, error) {
	t := s.lookup(phoneNumber)
	if t == nil {
		if _, err := s.store.Get(ctx, phoneNumber); err == nil {
			return false, ErrAlreadyTerminal
		}
		return false, ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec.Status.Terminal() {
		return false, ErrAlreadyTerminal
	}

	ok, err := t.adapter.Cancel(ctx, t.rec.VendorHandle)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	t.rec.Status = StatusCancelled
	t.stopTimers()
	s.untrack(phoneNumber)
	numbersCancelledTotal.Inc()
	activeNumbers.Dec()

	if err := s.store.Delete(ctx, phoneNumber); err != nil {
		log.Printf("numbers: failed to remove cancelled record %s: %v", phoneNumber, err)
	}
	return true, nil
}

// ResendOTP asks the vendor to repeat the SMS. On a terminal record it
// reports failure without contacting the vendor.
func (s *service) ResendOTP(ctx context.Context, phoneNumber string) (bool, error) {
	t := s.lookup(phoneNumber)
	if t == nil {
		if _, err := s.store.Get(ctx, phoneNumber); err == nil {
			return false, nil
		}
		return false, ErrNotFound
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rec.Status.Terminal() {
		return false, nil
	}
	return t.adapter.Resend(ctx, t.rec.VendorHandle)
}

// Restore re-tracks still-live records after a restart. Records already past
// their expiry window are expired immediately with a best-effort vendor
// release.
func (s *service) Restore(ctx context.Context) error {
	records, err := s.store.List(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, rec := range records {
		if rec.Status.Terminal() {
			continue
		}

		adapter, err := s.registry.Get(rec.VendorID)
		if err != nil {
			log.Printf("numbers: cannot restore %s, vendor %s unusable: %v", rec.PhoneNumber, rec.VendorID, err)
			continue
		}

		if rec.Status == StatusActive && now.After(rec.ExpiresAt) {
			cctx, cancel := context.WithTimeout(ctx, s.cfg.VendorTimeout)
			if _, err := adapter.Cancel(cctx, rec.VendorHandle); err != nil {
				log.Printf("numbers: vendor release failed for stale %s: %v", rec.PhoneNumber, err)
			}
			cancel()

			rec.Status = StatusExpired
			numbersExpiredTotal.Inc()
			if err := s.store.Put(ctx, rec); err != nil {
				log.Printf("numbers: failed to mark stale record %s expired: %v", rec.PhoneNumber, err)
			}
			continue
		}

		s.track(rec, adapter)
		log.Printf("numbers: restored %s (%s, expires %s)", rec.PhoneNumber, rec.Status, rec.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

// Shutdown stops all timers and background work
func (s *service) Shutdown() {
	s.cancel()

	s.mu.Lock()
	for _, t := range s.tracked {
		t.stopTimers()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// track registers the record and starts its poll loop and expiry timer
func (s *service) track(rec *Record, adapter provider.Adapter) {
	t := &tracked{
		rec:     rec,
		adapter: adapter,
		stop:    make(chan struct{}),
		expiry:  time.NewTimer(time.Until(rec.ExpiresAt)),
	}

	s.mu.Lock()
	s.tracked[rec.PhoneNumber] = t
	s.mu.Unlock()
	activeNumbers.Inc()

	s.wg.Add(1)
	go s.run(t)
}

func (s *service) lookup(phoneNumber string) *tracked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracked[phoneNumber]
}

func (s *service) untrack(phoneNumber string) {
	s.mu.Lock()
	delete(s.tracked, phoneNumber)
	s.mu.Unlock()
}

// run drives one record: periodic polls until terminal, one-shot expiry
func (s *service) run(t *tracked) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.pollOnce(t)
		case <-t.expiry.C:
			s.expire(t)
		case <-t.stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

// pollOnce asks the vendor for new messages and appends newly-distinct codes.
// Every state check happens under the record lock, so a poll that raced a
// cancel discards its result instead of resurrecting the record.
func (s *service) pollOnce(t *tracked) {
	t.mu.Lock()
	if t.rec.Status.Terminal() {
		t.mu.Unlock()
		t.stopTimers()
		return
	}
	handle := t.rec.VendorHandle
	phone := t.rec.PhoneNumber
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.VendorTimeout)
	messages, err := t.adapter.Poll(ctx, handle)
	cancel()

	pollCyclesTotal.Inc()
	if err != nil {
		// Adapters swallow transient failures themselves; anything that still
		// escapes is logged and retried next cycle
		log.Printf("numbers: poll %s failed: %v", phone, err)
		return
	}
	if len(messages) == 0 {
		return
	}

	t.mu.Lock()
	if t.rec.Status.Terminal() {
		// A cancel won the race while the vendor call was in flight
		t.mu.Unlock()
		return
	}

	appended := 0
	for _, msg := range messages {
		for _, code := range otpextract.Extract(msg) {
			if t.rec.HasCode(code) {
				continue
			}
			t.rec.OTPs = append(t.rec.OTPs, OTP{
				ID:         uuid.NewString(),
				Code:       code,
				ReceivedAt: time.Now(),
				Source:     t.adapter.ID(),
			})
			appended++
		}
	}

	if appended == 0 {
		t.mu.Unlock()
		return
	}

	if t.rec.Status == StatusActive {
		t.rec.Status = StatusReceived
		// A number that has answered is no longer subject to auto-cancellation
		t.expiry.Stop()
	}
	snapshot := t.rec.Clone()
	t.mu.Unlock()

	otpsExtractedTotal.Add(float64(appended))

	if err := s.store.Put(context.Background(), snapshot); err != nil {
		log.Printf("numbers: failed to persist OTPs for %s: %v", phone, err)
	}
	s.events.OTPUpdate(phone, snapshot.OTPs)
}

// expire fires at expiresAt. If no OTP ever arrived the vendor allocation is
// released best-effort and the record moves to expired; the local transition
// happens even when the vendor-side release fails.
func (s *service) expire(t *tracked) {
	t.mu.Lock()
	if t.rec.Status != StatusActive {
		t.mu.Unlock()
		return
	}
	handle := t.rec.VendorHandle
	phone := t.rec.PhoneNumber

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.VendorTimeout)
	if _, err := t.adapter.Cancel(ctx, handle); err != nil {
		log.Printf("numbers: vendor release failed for expired %s: %v", phone, err)
	}
	cancel()

	t.rec.Status = StatusExpired
	snapshot := t.rec.Clone()
	t.mu.Unlock()

	t.stopTimers()
	s.untrack(phone)
	numbersExpiredTotal.Inc()
	activeNumbers.Dec()

	// Expired records are retained until the sweeper removes them
	if err := s.store.Put(context.Background(), snapshot); err != nil {
		log.Printf("numbers: failed to mark record %s expired: %v", phone, err)
	}
	s.events.NumberExpired(phone)
}

// runSweeper periodically removes terminal records past the retention window
func (s *service) runSweeper() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *service) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	records, err := s.store.List(ctx)
	if err != nil {
		log.Printf("numbers: sweep failed to list records: %v", err)
		return
	}

	now := time.Now()
	for _, rec := range records {
		if !rec.Status.Terminal() {
			continue
		}
		if now.Sub(rec.ExpiresAt) < s.cfg.TerminalRetention {
			continue
		}
		if err := s.store.Delete(ctx, rec.PhoneNumber); err != nil {
			log.Printf("numbers: sweep failed to delete %s: %v", rec.PhoneNumber, err)
		}
	}
}

// nopSink discards events when no realtime channel is wired
type nopSink struct{}

func (nopSink) OTPUpdate(string, []OTP) {}
func (nopSink) NumberExpired(string)    {}
