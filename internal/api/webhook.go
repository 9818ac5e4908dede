package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kikilabs/kiki-reminders/internal/api/respond"
	"github.com/kikilabs/kiki-reminders/internal/dialogflow"
)

// Fulfiller handles one dialogue turn. Implemented by the dialogue router.
type Fulfiller interface {
	Handle(ctx context.Context, req *dialogflow.WebhookRequest) *dialogflow.WebhookResponse
}

// WebhookHandler is the fulfillment entry point for the NLU engine.
type WebhookHandler struct {
	fulfiller Fulfiller
}

func NewWebhookHandler(f Fulfiller) *WebhookHandler {
	return &WebhookHandler{fulfiller: f}
}

// Fulfill handles POST / and POST /webhook. A malformed body is the only
// hard failure; everything downstream answers conversationally with 200.
func (h *WebhookHandler) Fulfill(w http.ResponseWriter, r *http.Request) {
	var req dialogflow.WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "invalid webhook payload")
		return
	}
	resp := h.fulfiller.Handle(r.Context(), &req)
	respond.WriteJSON(w, http.StatusOK, resp)
}
