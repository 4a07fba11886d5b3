package service

import (
	"context"
	"fmt"
	"time"

	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/internal/service/provider"
	"go.uber.org/zap"
)

// recordTimeout bounds the Record call made after a request's own context
// may already be canceled (client disconnect), so accounting never depends
// on the caller still being there to wait for it.
const recordTimeout = 5 * time.Second

// Router is the subset of *provider.Router the gateway depends on, narrowed
// to an interface so the pipeline can be exercised against a fake upstream
// in tests without spinning up real provider clients.
type Router interface {
	Select(provider, model string) (provider.Client, string, error)
	Complete(ctx context.Context, client provider.Client, in provider.CompletionInput) (*models.CompleteResponse, error)
	Models() []models.ProviderModels
}

// Gateway wires the C2/C3/C4 services into the C5 request pipeline:
// authenticate (done by middleware before this is called), admit, dispatch,
// record, release.
type Gateway struct {
	Keys   *KeyStore
	Quota  *QuotaEngine
	Router Router
	Users  repository.UserRepository
	Logger *zap.Logger
}

// NewGateway builds a Gateway over its constituent services.
func NewGateway(keys *KeyStore, quota *QuotaEngine, router Router, users repository.UserRepository, logger *zap.Logger) *Gateway {
	return &Gateway{Keys: keys, Quota: quota, Router: router, Users: users, Logger: logger}
}

// Complete runs the §4.5 pipeline for an already-authenticated user: admit,
// dispatch to the selected upstream, record the outcome, release the
// concurrency slot exactly once. The returned response's ID is set to
// requestID so callers don't have to thread it through CompleteResponse
// twice.
func (g *Gateway) Complete(ctx context.Context, userID, requestID string, req models.CompleteRequest) (resp *models.CompleteResponse, err error) {
	if admitErr := g.Quota.Admit(ctx, userID); admitErr != nil {
		return nil, admitErr
	}

	released := false
	release := func() {
		if !released {
			released = true
			g.Quota.Release(userID)
		}
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			release()
			g.Logger.Error("panic in completion pipeline",
				zap.Any("panic", r),
				zap.String("request_id", requestID),
				zap.String("user_id", userID))
			g.recordOutcome(recordParamsFor(userID, requestID, models.ProviderUnknown, "unknown", 0, "panic"))
			resp = nil
			err = gatewayerr.New(gatewayerr.InternalError, "internal error")
		}
	}()

	start := time.Now()

	client, model, selErr := g.Router.Select(req.Provider, req.Model)
	if selErr != nil {
		latency := time.Since(start).Milliseconds()
		g.recordOutcome(recordParamsFor(userID, requestID, models.ProviderUnknown, "unknown", latency, shortMessage(selErr)))
		return nil, selErr
	}

	in := provider.CompletionInput{
		Model:          model,
		Messages:       req.Messages,
		Temperature:    req.Temperature,
		MaxTokens:      req.MaxTokens,
		ResponseFormat: req.ResponseFormat,
	}

	completion, completeErr := g.Router.Complete(ctx, client, in)
	latency := time.Since(start).Milliseconds()

	if completeErr != nil {
		reason := shortMessage(completeErr)
		if ctx.Err() == context.Canceled {
			reason = "client_canceled"
		}
		g.recordOutcome(recordParamsFor(userID, requestID, client.Name(), model, latency, reason))
		return nil, classifyProviderError(completeErr, requestID)
	}

	g.recordOutcome(RecordParams{
		UserID:       userID,
		RequestID:    requestID,
		Provider:     client.Name(),
		Model:        model,
		InputTokens:  completion.Usage.InputTokens,
		OutputTokens: completion.Usage.OutputTokens,
		LatencyMS:    latency,
		Status:       models.UsageStatusSuccess,
	})

	completion.ID = requestID
	return completion, nil
}

// recordOutcome calls Record with an independent, bounded-lifetime context
// so accounting for a failed/canceled request never depends on the
// now-unreliable request context.
func (g *Gateway) recordOutcome(p RecordParams) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := g.Quota.Record(ctx, p); err != nil {
		g.Logger.Error("failed to record usage", zap.String("request_id", p.RequestID), zap.Error(err))
	}
}

func recordParamsFor(userID, requestID string, p models.Provider, model string, latencyMS int64, reason string) RecordParams {
	return RecordParams{
		UserID:       userID,
		RequestID:    requestID,
		Provider:     p,
		Model:        model,
		LatencyMS:    latencyMS,
		Status:       models.UsageStatusError,
		ErrorMessage: &reason,
	}
}

// classifyProviderError maps a C4 dispatch error to the §7 taxonomy: a
// gatewayerr.Error (e.g. the Anthropic client's multiple-system-message
// validation_error) passes through with requestID attached; anything else
// is a failed upstream call after retries were exhausted, surfaced as
// llm_error. Either way the response body carries request_id (§4.5 step 7)
// alongside the X-Request-Id header.
func classifyProviderError(err error, requestID string) error {
	if gwErr, ok := gatewayerr.As(err); ok {
		return withRequestID(gwErr, requestID)
	}
	return withRequestID(gatewayerr.New(gatewayerr.LLMError, fmt.Sprintf("upstream request failed: %s", shortMessage(err))), requestID)
}

func withRequestID(e *gatewayerr.Error, requestID string) *gatewayerr.Error {
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	e.Fields["request_id"] = requestID
	return e
}

func shortMessage(err error) string {
	msg := err.Error()
	const max = 300
	if len(msg) > max {
		return msg[:max]
	}
	return msg
}
