package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/llmgateway/gateway/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_HealthIsUnconditional(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	h := NewHealthHandler(db, false)

	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestHealthHandler_ReadyOKWhenDBReachableAndProviderConfigured(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	h := NewHealthHandler(db, true)

	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_ReadyDegradedWithoutProvider(t *testing.T) {
	db, _ := testutil.NewTestDB(t)
	h := NewHealthHandler(db, false)

	c, w := testutil.NewTestContext()
	c.Request = httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	h.Ready(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}
