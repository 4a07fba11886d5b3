package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"golang.org/x/time/rate"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion     = "2023-06-01"

	// defaultMaxTokens is used when the unified request omits max_tokens,
	// which this upstream requires.
	defaultMaxTokens = 1024
)

// AnthropicClient dispatches completions to the Anthropic Messages API.
type AnthropicClient struct {
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
}

// NewAnthropicClient builds an AnthropicClient rate-limited by limiter.
func NewAnthropicClient(apiKey string, limiter *rate.Limiter) *AnthropicClient {
	return &AnthropicClient{apiKey: apiKey, http: newUpstreamHTTPClient(), limiter: limiter, baseURL: anthropicMessagesURL}
}

func (c *AnthropicClient) Name() models.Provider { return models.ProviderAnthropic }

func (c *AnthropicClient) Complete(ctx context.Context, in CompletionInput) (*models.CompleteResponse, error) {
	wireReq, err := AnthropicRequestFromInput(in)
	if err != nil {
		return nil, err
	}

	var result *models.CompleteResponse
	err = callWithRetry(ctx, c.limiter, func(ctx context.Context) error {
		resp, err := c.doRequest(ctx, wireReq)
		if err != nil {
			return err
		}
		result = resp
		return nil
	})
	return result, err
}

// AnthropicRequestFromInput extracts the sole system message into the
// request's system field and forwards the rest. More than one system
// message is a validation error, per §4.4. response_format is a no-op on
// this provider and is not forwarded.
func AnthropicRequestFromInput(in CompletionInput) (models.AnthropicRequest, error) {
	var system *string
	messages := make([]models.Message, 0, len(in.Messages))

	for _, m := range in.Messages {
		if m.Role == "system" {
			if system != nil {
				return models.AnthropicRequest{}, gatewayerr.New(gatewayerr.ValidationError, "only one system message is supported")
			}
			text := m.Content
			system = &text
			continue
		}
		messages = append(messages, models.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	maxTokens := defaultMaxTokens
	if in.MaxTokens != nil {
		maxTokens = *in.MaxTokens
	}

	return models.AnthropicRequest{
		Model:       in.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		System:      system,
		Temperature: in.Temperature,
	}, nil
}

func (c *AnthropicClient) doRequest(ctx context.Context, wireReq models.AnthropicRequest) (*models.CompleteResponse, error) {
	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, retryable(fmt.Errorf("anthropic request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable(fmt.Errorf("read anthropic response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody models.AnthropicErrorBody
		_ = json.Unmarshal(respBody, &errBody)
		msg := errBody.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("anthropic upstream returned status %d", resp.StatusCode)
		}
		return nil, newStatusError(resp.StatusCode, msg)
	}

	var wireResp models.AnthropicResponse
	if err := json.Unmarshal(respBody, &wireResp); err != nil {
		return nil, fmt.Errorf("decode anthropic response: %w", err)
	}

	return normalizeAnthropicResponse(wireResp), nil
}

func normalizeAnthropicResponse(resp models.AnthropicResponse) *models.CompleteResponse {
	content := ""
	for _, part := range resp.Content {
		if part.Type == "text" && part.Text != "" {
			content = part.Text
			break
		}
	}

	finishReason := resp.StopReason
	if finishReason == "" {
		finishReason = "unknown"
	}

	return &models.CompleteResponse{
		Provider: string(models.ProviderAnthropic),
		Model:    resp.Model,
		Content:  content,
		Usage: models.CompletionUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: finishReason,
	}
}
