package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/llmgateway/gateway/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func unlimitedLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func TestOpenAIClient_CompleteSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.OpenAIResponse{
			Model: "gpt-4o-mini",
			Choices: []models.OpenAIChoice{
				{Message: models.OpenAIMessage{Role: "assistant", Content: "hello"}, FinishReason: "stop"},
			},
			Usage: models.OpenAIUsage{PromptTokens: 10, CompletionTokens: 5},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	resp, err := client.Complete(context.Background(), CompletionInput{
		Model:    "gpt-4o-mini",
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestOpenAIClient_RetriesOn500ThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(models.OpenAIErrorBody{})
			return
		}
		_ = json.NewEncoder(w).Encode(models.OpenAIResponse{
			Model:   "gpt-4o-mini",
			Choices: []models.OpenAIChoice{{Message: models.OpenAIMessage{Content: "ok"}, FinishReason: "stop"}},
		})
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	resp, err := client.Complete(context.Background(), CompletionInput{
		Model:    "gpt-4o-mini",
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestOpenAIClient_DoesNotRetryOn400(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.OpenAIErrorBody{})
	}))
	defer server.Close()

	client := NewOpenAIClient("sk-test", unlimitedLimiter())
	client.http = server.Client()
	client.baseURL = server.URL

	_, err := client.Complete(context.Background(), CompletionInput{
		Model:    "gpt-4o-mini",
		Messages: []models.ChatMessage{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestOpenAIRequestFromInput_MapsJSONResponseFormat(t *testing.T) {
	req := OpenAIRequestFromInput(CompletionInput{
		Model:          "gpt-4o",
		Messages:       []models.ChatMessage{{Role: "user", Content: "hi"}},
		ResponseFormat: "json",
	})
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_object", req.ResponseFormat.Type)
}
