// Package chat calls the external completion service used for small talk.
// The dialogue core never inspects or shapes these answers; it only relays
// them.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to an OpenAI-style chat completions endpoint.
type Client struct {
	client *resty.Client
	model  string
}

// New builds a chat client for the given base URL. apiKey may be empty for
// unauthenticated local gateways.
func New(baseURL, model, apiKey string) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second)
	if apiKey != "" {
		c.SetAuthToken(apiKey)
	}
	return &Client{client: c, model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete returns the assistant's reply for a free-form user utterance.
func (c *Client) Complete(ctx context.Context, text string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a friendly reminder assistant making small talk. Keep replies short."},
			{Role: "user", Content: text},
		},
	}

	var out chatResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(&reqBody).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("chat completions status %d", resp.StatusCode())
	}
	if out.Error != nil {
		return "", fmt.Errorf("chat completions error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// HealthPing probes the service's model listing endpoint.
func (c *Client) HealthPing(ctx context.Context) error {
	resp, err := c.client.R().SetContext(ctx).Get("/v1/models")
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("chat service status %d", resp.StatusCode())
	}
	return nil
}
