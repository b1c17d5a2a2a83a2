// internal/numbers/models.go

package numbers

import (
	"errors"
	"time"
)

var (
	// ErrNotFound means no record exists for the phone number
	ErrNotFound = errors.New("number not found")

	// ErrAlreadyTerminal means the record is cancelled or expired
	ErrAlreadyTerminal = errors.New("number already cancelled or expired")
)

// Status is the lifecycle state of a virtual number
type Status string

const (
	StatusActive    Status = "active"
	StatusReceived  Status = "received"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions
func (s Status) Terminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// OTP is one extracted passcode
type OTP struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	ReceivedAt time.Time `json:"received_at"`
	Source     string    `json:"source"` // vendor that produced it, diagnostic only
}

// Record tracks one allocated virtual number from creation to termination.
// The vendor handle is internal: all follow-up vendor calls use it, API
// callers never see it.
type Record struct {
	ID           string    `json:"id"`
	PhoneNumber  string    `json:"phone_number"`
	VendorID     string    `json:"vendor_id"`
	VendorHandle string    `json:"-"`
	Product      string    `json:"product"`
	Country      string    `json:"country"`
	Operator     string    `json:"operator,omitempty"`
	OTPs         []OTP     `json:"otps"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Status       Status    `json:"status"`
}

// Clone returns a deep copy safe to hand to callers
func (r *Record) Clone() *Record {
	clone := *r
	clone.OTPs = make([]OTP, len(r.OTPs))
	copy(clone.OTPs, r.OTPs)
	return &clone
}

// HasCode reports whether a code value is already stored
func (r *Record) HasCode(code string) bool {
	for _, otp := range r.OTPs {
		if otp.Code == code {
			return true
		}
	}
	return false
}

// RequestNumberRequest is the allocation request body
type RequestNumberRequest struct {
	Product  string `json:"product" validate:"required"`
	Country  string `json:"country" validate:"required"`
	Operator string `json:"operator,omitempty"`
}
