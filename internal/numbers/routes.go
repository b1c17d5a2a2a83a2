// internal/numbers/routes.go

package numbers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes registers virtual-number routes
func RegisterRoutes(router *mux.Router, handler *Handler) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/numbers", handler.RequestNumber).Methods(http.MethodPost)
	api.HandleFunc("/numbers", handler.GetActiveNumbers).Methods(http.MethodGet)
	api.HandleFunc("/numbers/{phone}", handler.GetNumber).Methods(http.MethodGet)
	api.HandleFunc("/numbers/{phone}", handler.CancelNumber).Methods(http.MethodDelete)
	api.HandleFunc("/numbers/{phone}/otps", handler.CheckOTPs).Methods(http.MethodGet)
	api.HandleFunc("/numbers/{phone}/resend", handler.ResendOTP).Methods(http.MethodPost)
}
