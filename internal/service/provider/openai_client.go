package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/llmgateway/gateway/internal/models"
	"golang.org/x/time/rate"
)

const openAICompletionsURL = "https://api.openai.com/v1/chat/completions"

// OpenAIClient dispatches completions to the OpenAI-shaped chat-completions
// API.
type OpenAIClient struct {
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewOpenAIClient builds an OpenAIClient rate-limited by limiter.
func NewOpenAIClient(apiKey string, limiter *rate.Limiter) *OpenAIClient {
	return &OpenAIClient{apiKey: apiKey, http: newUpstreamHTTPClient(), limiter: limiter, baseURL: openAICompletionsURL}
}

func (c *OpenAIClient) Name() models.Provider { return models.ProviderOpenAI }

func (c *OpenAIClient) Complete(ctx context.Context, in CompletionInput) (*models.CompleteResponse, error) {
	wireReq := OpenAIRequestFromInput(in)

	var result *models.CompleteResponse
	err := callWithRetry(ctx, c.limiter, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, wireReq)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

// OpenAIRequestFromInput translates the unified request into the upstream
// wire shape: response_format=json maps to the JSON-object mode, and
// temperature/max_tokens pass through unchanged.
func OpenAIRequestFromInput(in CompletionInput) models.OpenAIRequest {
	messages := make([]models.OpenAIMessage, len(in.Messages))
	for i, m := range in.Messages {
		messages[i] = models.OpenAIMessage{Role: m.Role, Content: m.Content}
	}

	req := models.OpenAIRequest{
		Model:       in.Model,
		Messages:    messages,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	}
	if in.ResponseFormat == "json" {
		req.ResponseFormat = &models.OpenAIResponseFormat{Type: "json_object"}
	}
	return req
}

func (c *OpenAIClient) doRequest(ctx context.Context, wireReq models.OpenAIRequest) (*models.CompleteResponse, error) {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, retryable(fmt.Errorf("openai request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable(fmt.Errorf("read openai response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody models.OpenAIErrorBody
		_ = json.Unmarshal(respBody, &errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("openai upstream returned status %d", resp.StatusCode)
		}
		return nil, newStatusError(resp.StatusCode, msg)
	}

	var wireResp models.OpenAIResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("decode openai response: %w", err)
	}

	return normalizeOpenAIResponse(wireResp), nil
}

func normalizeOpenAIResponse(resp models.OpenAIResponse) *models.CompleteResponse {
	content := ""
	finishReason := "unknown"
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		if resp.Choices[0].FinishReason != "" {
			finishReason = resp.Choices[0].FinishReason
		}
	}

	return &models.CompleteResponse{
		Provider: string(models.ProviderOpenAI),
		Model:    resp.Model,
		Content:  content,
		Usage: models.CompletionUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.PromptTokens + resp.Usage.CompletionTokens,
		},
		FinishReason: finishReason,
	}
}
