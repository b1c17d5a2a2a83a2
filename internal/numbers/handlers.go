// internal/numbers/handlers.go

package numbers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/numbay/numbay-backend/internal/common/utils"
	"github.com/numbay/numbay-backend/internal/provider"
)

// Handler handles virtual-number HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new numbers handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// RequestNumber handles number allocation requests
func (h *Handler) RequestNumber(w http.ResponseWriter, r *http.Request) {
	var req RequestNumberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.ErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	record, err := h.service.RequestNumber(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrNoInventory):
			utils.ErrorResponse(w, "No numbers available for this product/country", http.StatusConflict)
		case errors.Is(err, provider.ErrInvalidParameters):
			utils.ErrorResponse(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, provider.ErrAuthFailure):
			utils.ErrorResponse(w, "Vendor rejected credentials", http.StatusBadGateway)
		case errors.Is(err, provider.ErrNoProviderAvailable), errors.Is(err, provider.ErrCredentialsMissing):
			utils.ErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, provider.ErrVendorUnavailable):
			utils.ErrorResponse(w, "Vendor unavailable", http.StatusBadGateway)
		default:
			utils.ErrorResponse(w, "Failed to allocate number", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, record, http.StatusCreated)
}

// GetActiveNumbers returns all live numbers
func (h *Handler) GetActiveNumbers(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.GetActiveNumbers(r.Context())
	if err != nil {
		utils.ErrorResponse(w, "Failed to list numbers", http.StatusInternalServerError)
		return
	}
	utils.SuccessResponse(w, records, http.StatusOK)
}

// GetNumber returns one number's record
func (h *Handler) GetNumber(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	record, err := h.service.GetNumber(r.Context(), phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Number not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to load number", http.StatusInternalServerError)
		return
	}
	utils.SuccessResponse(w, record, http.StatusOK)
}

// CheckOTPs forces an immediate poll and returns the stored OTPs
func (h *Handler) CheckOTPs(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	otps, err := h.service.CheckOTPs(r.Context(), phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Number not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to check OTPs", http.StatusInternalServerError)
		return
	}
	utils.SuccessResponse(w, otps, http.StatusOK)
}

// CancelNumber cancels a number
func (h *Handler) CancelNumber(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	ok, err := h.service.CancelNumber(r.Context(), phone)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			utils.ErrorResponse(w, "Number not found", http.StatusNotFound)
		case errors.Is(err, ErrAlreadyTerminal):
			utils.ErrorResponse(w, "Number already cancelled or expired", http.StatusConflict)
		default:
			// Vendor-side cancel failure surfaces so the caller can retry
			utils.ErrorResponse(w, "Vendor cancel failed: "+err.Error(), http.StatusBadGateway)
		}
		return
	}

	utils.SuccessResponse(w, map[string]bool{"cancelled": ok}, http.StatusOK)
}

// ResendOTP requests an SMS resend
func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	phone := mux.Vars(r)["phone"]

	ok, err := h.service.ResendOTP(r.Context(), phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.ErrorResponse(w, "Number not found", http.StatusNotFound)
			return
		}
		utils.ErrorResponse(w, "Failed to request resend", http.StatusBadGateway)
		return
	}
	utils.SuccessResponse(w, map[string]bool{"resent": ok}, http.StatusOK)
}
