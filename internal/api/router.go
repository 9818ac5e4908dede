package api

import (
	"github.com/gorilla/mux"

	"github.com/kikilabs/kiki-reminders/internal/api/recovery"
)

// NewRouter builds the HTTP router: the webhook endpoint on both the bare
// root (the engine's default) and /webhook, plus health.
func NewRouter(f Fulfiller) *mux.Router {
	router := mux.NewRouter()

	router.Use(recovery.Middleware)

	webhookHandler := NewWebhookHandler(f)
	healthHandler := NewHealthHandler()

	router.HandleFunc("/", webhookHandler.Fulfill).Methods("POST")
	router.HandleFunc("/webhook", webhookHandler.Fulfill).Methods("POST")
	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")

	return router
}
