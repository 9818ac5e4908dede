// Package dialogflow holds the webhook wire types exchanged with the NLU
// engine. These mirror the external JSON schema and carry no behavior beyond
// name/tag helpers.
package dialogflow

import (
	"encoding/json"
	"strings"
)

// WebhookRequest is the inbound fulfillment payload for one dialogue turn.
type WebhookRequest struct {
	Session     string      `json:"session"`
	QueryResult QueryResult `json:"queryResult"`
}

// QueryResult carries the recognized intent, extracted slots and the
// contexts active for this turn. Parameters stay raw because slot shapes are
// heterogeneous (string, list, range object).
type QueryResult struct {
	QueryText      string                     `json:"queryText"`
	Intent         Intent                     `json:"intent"`
	Parameters     map[string]json.RawMessage `json:"parameters"`
	InputContexts  []Context                  `json:"inputContexts,omitempty"`
	OutputContexts []Context                  `json:"outputContexts,omitempty"`
	QueryParams    *QueryParams               `json:"queryParams,omitempty"`
}

// Intent identifies the matched intent by display name.
type Intent struct {
	DisplayName string `json:"displayName"`
}

// QueryParams carries the caller-supplied payload; the frontend places the
// per-user client id here.
type QueryParams struct {
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// Context is a named, parameterized, lifespan-counted record. A context with
// lifespan 0 is cleared and must not be read.
type Context struct {
	Name          string                 `json:"name"`
	LifespanCount int                    `json:"lifespanCount"`
	Parameters    map[string]interface{} `json:"parameters,omitempty"`
}

// WebhookResponse is the outbound payload: fulfillment text plus the desired
// context transitions.
type WebhookResponse struct {
	FulfillmentText     string    `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []Message `json:"fulfillmentMessages,omitempty"`
	OutputContexts      []Context `json:"outputContexts,omitempty"`
}

// Message is a single text fulfillment message.
type Message struct {
	Text Text `json:"text"`
}

// Text wraps the message variants.
type Text struct {
	Text []string `json:"text"`
}

// NewResponse builds a response carrying text in both fulfillment forms.
func NewResponse(text string, contexts []Context) *WebhookResponse {
	return &WebhookResponse{
		FulfillmentText:     text,
		FulfillmentMessages: []Message{{Text: Text{Text: []string{text}}}},
		OutputContexts:      contexts,
	}
}

// ContextName builds the conventional full context name for a session.
func ContextName(session, tag string) string {
	return session + "/contexts/" + tag
}

// ContextTag extracts the bare tag from a full context name. Names without
// the /contexts/ segment are returned unchanged.
func ContextTag(name string) string {
	if i := strings.LastIndex(name, "/contexts/"); i >= 0 {
		return name[i+len("/contexts/"):]
	}
	return name
}

// OwnerHint returns the per-user client id supplied by the frontend, if any.
func (r *WebhookRequest) OwnerHint() string {
	if r.QueryResult.QueryParams == nil {
		return ""
	}
	for _, key := range []string{"user_client_id", "userClientId"} {
		if v, ok := r.QueryResult.QueryParams.Payload[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
