// Package provider implements C4: upstream selection, wire-format
// translation, and resilient dispatch to the OpenAI- and Anthropic-shaped
// LLM APIs.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/llmgateway/gateway/internal/models"
)

// headerTimeout bounds how long the client waits for upstream response
// headers; bodyTimeout bounds the entire call including body transfer.
const (
	headerTimeout = 30 * time.Second
	bodyTimeout   = 2 * time.Minute
)

// CompletionInput is the normalized request passed to a Client, after
// router-level model/provider selection.
type CompletionInput struct {
	Model          string
	Messages       []models.ChatMessage
	Temperature    *float64
	MaxTokens      *int
	ResponseFormat string
}

// Client dispatches a normalized completion request to one upstream and
// returns the normalized response envelope.
type Client interface {
	Name() models.Provider
	Complete(ctx context.Context, in CompletionInput) (*models.CompleteResponse, error)
}

// newUpstreamHTTPClient builds the *http.Client a provider client holds for
// its lifetime (each provider client calls it once, so the two do not share
// one): a response-header timeout bounds time-to-first-byte,
// and the overall client Timeout bounds the full round trip including body.
func newUpstreamHTTPClient() *http.Client {
	return &http.Client{
		Timeout: bodyTimeout,
		Transport: &http.Transport{
			ResponseHeaderTimeout: headerTimeout,
		},
	}
}

// retryableStatus reports whether an upstream HTTP status should be retried:
// 429 and any 5xx, per §4.4.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
