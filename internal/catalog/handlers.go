// internal/catalog/handlers.go

package catalog

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/numbay/numbay-backend/internal/common/utils"
	"github.com/numbay/numbay-backend/internal/provider"
)

// Handler handles catalog HTTP requests
type Handler struct {
	service Service
}

// NewHandler creates a new catalog handler
func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// GetCatalog returns the current vendor's products for a country
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	country := mux.Vars(r)["country"]

	catalog, err := h.service.GetCatalog(r.Context(), country)
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrNoProviderAvailable), errors.Is(err, provider.ErrCredentialsMissing):
			utils.ErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
		case errors.Is(err, provider.ErrInvalidParameters):
			utils.ErrorResponse(w, "Unknown country: "+country, http.StatusBadRequest)
		case errors.Is(err, provider.ErrAuthFailure), errors.Is(err, provider.ErrVendorUnavailable):
			utils.ErrorResponse(w, "Vendor catalog unavailable", http.StatusBadGateway)
		default:
			utils.ErrorResponse(w, "Failed to load catalog", http.StatusInternalServerError)
		}
		return
	}

	utils.SuccessResponse(w, catalog, http.StatusOK)
}

// RegisterRoutes registers catalog routes
func RegisterRoutes(router *mux.Router, handler *Handler) {
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/catalog/{country}", handler.GetCatalog).Methods(http.MethodGet)
}
