// internal/provider/handlers.go

package provider

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/numbay/numbay-backend/internal/common/utils"
)

// Handler handles provider management HTTP requests
type Handler struct {
	registry *Registry
}

// NewHandler creates a new provider handler
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

// ListProviders returns the status of every known vendor
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	utils.SuccessResponse(w, h.registry.List(), http.StatusOK)
}

// GetProvider returns one vendor's status
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	status, err := h.registry.Status(id)
	if err != nil {
		utils.ErrorResponse(w, "Unknown provider: "+id, http.StatusNotFound)
		return
	}
	utils.SuccessResponse(w, status, http.StatusOK)
}

// SelectProvider sets the current vendor for new allocations
func (h *Handler) SelectProvider(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.registry.Select(id); err != nil {
		switch {
		case errors.Is(err, ErrUnknownProvider):
			utils.ErrorResponse(w, "Unknown provider: "+id, http.StatusNotFound)
		case errors.Is(err, ErrCredentialsMissing):
			utils.ErrorResponse(w, err.Error(), http.StatusConflict)
		default:
			utils.ErrorResponse(w, "Failed to select provider", http.StatusInternalServerError)
		}
		return
	}

	utils.MessageResponse(w, "Provider selected: "+id, http.StatusOK)
}
