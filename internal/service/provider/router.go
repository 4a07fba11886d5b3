package provider

import (
	"context"
	"fmt"

	"github.com/llmgateway/gateway/internal/config"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/llmgateway/gateway/internal/models"
	"golang.org/x/time/rate"
)

// Router implements C4 selection: choosing an upstream and model for a
// request, then delegating dispatch to that upstream's Client.
type Router struct {
	clients map[models.Provider]Client
	order   []models.Provider
	cfg     config.ProvidersConfig
}

// NewRouter builds a Router from cfg, constructing a Client for each
// provider with a configured API key, sharing one rate.Limiter per
// provider across every call (and every retry attempt) to that upstream.
func NewRouter(cfg config.ProvidersConfig) *Router {
	r := &Router{clients: make(map[models.Provider]Client), cfg: cfg}

	if cfg.OpenAIAPIKey != "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.UpstreamRatePerSec), 1)
		r.clients[models.ProviderOpenAI] = NewOpenAIClient(cfg.OpenAIAPIKey, limiter)
	}
	if cfg.AnthropicAPIKey != "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.UpstreamRatePerSec), 1)
		r.clients[models.ProviderAnthropic] = NewAnthropicClient(cfg.AnthropicAPIKey, limiter)
	}
	r.order = []models.Provider{models.ProviderOpenAI, models.ProviderAnthropic}

	return r
}

// Select resolves a requested provider tag and model to a concrete Client
// and model string, applying the §4.4 selection procedure.
func (r *Router) Select(provider, model string) (Client, string, error) {
	p := models.Provider(provider)

	if p == "" || p == models.ProviderAuto {
		for _, candidate := range r.order {
			if client, ok := r.clients[candidate]; ok {
				return r.selectModel(client, model)
			}
		}
		return nil, "", gatewayerr.New(gatewayerr.NoProviderAvail, "no upstream provider is configured")
	}

	client, ok := r.clients[p]
	if !ok {
		return nil, "", gatewayerr.New(gatewayerr.NoProviderAvail, fmt.Sprintf("provider %q is not configured", provider))
	}
	return r.selectModel(client, model)
}

func (r *Router) selectModel(client Client, model string) (Client, string, error) {
	allowed, defaultModel := r.allowlist(client.Name())

	if model == "" {
		return client, defaultModel, nil
	}
	for _, m := range allowed {
		if m == model {
			return client, model, nil
		}
	}
	return nil, "", gatewayerr.New(gatewayerr.ModelNotAllowed, fmt.Sprintf("model %q is not allowed for provider %q", model, client.Name()))
}

func (r *Router) allowlist(p models.Provider) (allowed []string, defaultModel string) {
	if p == models.ProviderOpenAI {
		return r.cfg.OpenAIModels, r.cfg.OpenAIDefaultModel
	}
	return r.cfg.AnthropicModels, r.cfg.AnthropicDefaultModel
}

// Models returns the full provider/model listing for GET /v1/llm/models,
// regardless of whether a given provider is configured.
func (r *Router) Models() []models.ProviderModels {
	return []models.ProviderModels{
		{
			Provider:     string(models.ProviderOpenAI),
			Configured:   r.clients[models.ProviderOpenAI] != nil,
			DefaultModel: r.cfg.OpenAIDefaultModel,
			Models:       r.cfg.OpenAIModels,
		},
		{
			Provider:     string(models.ProviderAnthropic),
			Configured:   r.clients[models.ProviderAnthropic] != nil,
			DefaultModel: r.cfg.AnthropicDefaultModel,
			Models:       r.cfg.AnthropicModels,
		},
	}
}

// Complete dispatches a normalized request through client after selection.
func (r *Router) Complete(ctx context.Context, client Client, in CompletionInput) (*models.CompleteResponse, error) {
	return client.Complete(ctx, in)
}
