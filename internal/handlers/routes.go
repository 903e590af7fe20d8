package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the admin API on router. Mutating endpoints are
// wrapped with protect.
func (h *Handlers) RegisterRoutes(router *mux.Router, protect func(http.Handler) http.Handler) {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}

	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/cache").Subrouter()
	api.HandleFunc("/stats", h.GetStats).Methods("GET")
	api.HandleFunc("/keys", h.GetKeys).Methods("GET")

	api.Handle("/keys", protect(http.HandlerFunc(h.InvalidateKeys))).Methods("DELETE")
	api.Handle("/keys/{key:.+}", protect(http.HandlerFunc(h.DeleteKey))).Methods("DELETE")
	api.Handle("/cleanup", protect(http.HandlerFunc(h.RunCleanup))).Methods("POST")
}
