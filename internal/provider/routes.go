// internal/provider/routes.go

package provider

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers provider management routes
func RegisterRoutes(router *mux.Router, handler *Handler) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/providers", handler.ListProviders).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}", handler.GetProvider).Methods(http.MethodGet)
	api.HandleFunc("/providers/{id}/select", handler.SelectProvider).Methods(http.MethodPost)
}
