package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClient_CompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		_ = json.NewEncoder(w).Encode(models.AnthropicResponse{
			Model:      "claude-3-5-sonnet-20241022",
			StopReason: "end_turn",
			Content:    []models.ContentPart{{Type: "text", Text: "hi there"}},
			Usage:      models.Usage{InputTokens: 12, OutputTokens: 8},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	resp, err := client.Complete(context.Background(), CompletionInput{
		Model: "claude-3-5-sonnet-20241022",
		Messages: []models.ChatMessage{
			{Role: "system", Content: "be terse"},
			{Role: "user", Content: "hi"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, 20, resp.Usage.TotalTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestAnthropicClient_DefaultMaxTokensApplied(t *testing.T) {
	var captured models.AnthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(models.AnthropicResponse{
			Content: []models.ContentPart{{Type: "text", Text: "ok"}},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	_, err := client.Complete(context.Background(), CompletionInput{
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, captured.MaxTokens)
}

func TestAnthropicRequestFromInput_RejectsMultipleSystemMessages(t *testing.T) {
	_, err := AnthropicRequestFromInput(CompletionInput{
		Messages: []models.ChatMessage{
			{Role: "system", Content: "a"},
			{Role: "system", Content: "b"},
		},
	})
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.ValidationError, gwErr.Kind)
}

func TestAnthropicClient_DoesNotRetryOnClientError(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.AnthropicErrorBody{})
	}))
	defer server.Close()

	client := NewAnthropicClient("test-key", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	_, err := client.Complete(context.Background(), CompletionInput{
		Model:    "claude-3-5-sonnet-20241022",
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
