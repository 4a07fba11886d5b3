package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/llmgateway/gateway/internal/models"
	"github.com/llmgateway/gateway/internal/repository"
	"github.com/llmgateway/gateway/internal/service"
	"github.com/llmgateway/gateway/internal/service/provider"
	"github.com/llmgateway/gateway/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubClient struct {
	resp *models.CompleteResponse
	err  error
}

func (s *stubClient) Name() models.Provider { return models.ProviderOpenAI }

func (s *stubClient) Complete(ctx context.Context, in provider.CompletionInput) (*models.CompleteResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

type stubRouter struct {
	client *stubClient
}

func (r *stubRouter) Select(providerName, model string) (provider.Client, string, error) {
	return r.client, "gpt-4o-mini", nil
}

func (r *stubRouter) Complete(ctx context.Context, client provider.Client, in provider.CompletionInput) (*models.CompleteResponse, error) {
	return client.Complete(ctx, in)
}

func (r *stubRouter) Models() []models.ProviderModels {
	return []models.ProviderModels{{Provider: "openai", Configured: true, DefaultModel: "gpt-4o-mini", Models: []string{"gpt-4o-mini"}}}
}

func newLLMTestFixture(t *testing.T) (*LLMHandler, string) {
	t.Helper()
	return newLLMTestFixtureWithClient(t, &stubClient{resp: &models.CompleteResponse{
		Provider: "openai", Model: "gpt-4o-mini", Content: "hello",
		Usage: models.CompletionUsage{InputTokens: 4, OutputTokens: 2, TotalTokens: 6}, FinishReason: "stop",
	}})
}

func newLLMTestFixtureWithClient(t *testing.T, client *stubClient) (*LLMHandler, string) {
	t.Helper()
	db, dialect := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db, dialect)
	keysRepo := repository.NewKeyRepository(db, dialect)
	quotasRepo := repository.NewQuotaRepository(db, dialect)
	usageRepo := repository.NewUsageRepository(db, dialect)
	aggRepo := repository.NewAggregateRepository(db, dialect)

	userID := "user_1"
	ctx := context.Background()
	require.NoError(t, users.Insert(ctx, &models.User{ID: userID, Status: models.UserStatusActive, CreatedAt: time.Now(), UpdatedAt: time.Now()}))
	require.NoError(t, quotasRepo.Insert(ctx, &models.UserQuota{UserID: userID, DailyRequests: 1000, DailyTokens: 1000000, MaxConcurrentRequests: 5}))

	keyStore := service.NewKeyStore(keysRepo, users, zap.NewNop())
	quotaEngine := service.NewQuotaEngine(quotasRepo, usageRepo, aggRepo)
	router := &stubRouter{client: client}
	gateway := service.NewGateway(keyStore, quotaEngine, router, users, zap.NewNop())

	return NewLLMHandler(gateway, quotaEngine, zap.NewNop()), userID
}

func TestLLMHandler_CompleteHappyPath(t *testing.T) {
	h, userID := newLLMTestFixture(t)

	body, _ := json.Marshal(models.CompleteRequest{Messages: []models.ChatMessage{{Role: "user", Content: "hi"}}})
	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/llm/complete", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", userID)
	c.Set("request_id", "req-1")

	h.Complete(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.CompleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, "hello", resp.Content)
}

func TestLLMHandler_CompleteRejectsInvalidBody(t *testing.T) {
	h, userID := newLLMTestFixture(t)

	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/llm/complete", bytes.NewReader([]byte(`{"messages": []}`)))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", userID)
	c.Set("request_id", "req-2")

	h.Complete(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLLMHandler_CompleteUpstreamFailureIncludesRequestIDInBody(t *testing.T) {
	h, userID := newLLMTestFixtureWithClient(t, &stubClient{err: errors.New("upstream exhausted retries")})

	body, _ := json.Marshal(models.CompleteRequest{Messages: []models.ChatMessage{{Role: "user", Content: "hi"}}})
	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/llm/complete", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("user_id", userID)
	c.Set("request_id", "req-3")

	h.Complete(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	var errBody map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, "llm_error", errBody["error"])
	assert.Equal(t, "req-3", errBody["request_id"])
}

func TestLLMHandler_Models(t *testing.T) {
	h, _ := newLLMTestFixture(t)
	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/llm/models", nil)

	h.Models(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gpt-4o-mini")
}

func TestLLMHandler_Quota(t *testing.T) {
	h, userID := newLLMTestFixture(t)
	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/llm/quota", nil)
	c.Set("user_id", userID)

	h.Quota(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var status models.QuotaStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, userID, status.UserID)
}
