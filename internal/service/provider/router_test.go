package provider

import (
	"testing"

	"github.com/llmgateway/gateway/internal/config"
	"github.com/llmgateway/gateway/internal/gatewayerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvidersConfig() config.ProvidersConfig {
	return config.ProvidersConfig{
		OpenAIAPIKey:          "sk-test",
		AnthropicAPIKey:       "",
		UpstreamRatePerSec:    5,
		OpenAIModels:          []string{"gpt-4o", "gpt-4o-mini"},
		OpenAIDefaultModel:    "gpt-4o-mini",
		AnthropicModels:       []string{"claude-3-5-sonnet-20241022"},
		AnthropicDefaultModel: "claude-3-5-haiku-20241022",
	}
}

func TestRouter_SelectAutoPicksFirstConfigured(t *testing.T) {
	r := NewRouter(testProvidersConfig())

	client, model, err := r.Select("", "")
	require.NoError(t, err)
	assert.Equal(t, "openai", string(client.Name()))
	assert.Equal(t, "gpt-4o-mini", model)
}

func TestRouter_SelectUnconfiguredProviderFails(t *testing.T) {
	r := NewRouter(testProvidersConfig())

	_, _, err := r.Select("anthropic", "")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.NoProviderAvail, gwErr.Kind)
}

func TestRouter_SelectNoProviderConfigured(t *testing.T) {
	r := NewRouter(config.ProvidersConfig{})

	_, _, err := r.Select("", "")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.NoProviderAvail, gwErr.Kind)
}

func TestRouter_SelectDisallowedModel(t *testing.T) {
	r := NewRouter(testProvidersConfig())

	_, _, err := r.Select("openai", "gpt-3.5-turbo")
	require.Error(t, err)
	gwErr, ok := gatewayerr.As(err)
	require.True(t, ok)
	assert.Equal(t, gatewayerr.ModelNotAllowed, gwErr.Kind)
}

func TestRouter_SelectAllowedModel(t *testing.T) {
	r := NewRouter(testProvidersConfig())

	client, model, err := r.Select("openai", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, "openai", string(client.Name()))
	assert.Equal(t, "gpt-4o", model)
}

func TestRouter_Models(t *testing.T) {
	r := NewRouter(testProvidersConfig())
	listing := r.Models()
	require.Len(t, listing, 2)
	assert.True(t, listing[0].Configured)
	assert.False(t, listing[1].Configured)
}
