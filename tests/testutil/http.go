package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
)

// NewTestContext creates a bare Gin context and response recorder for
// testing handlers and middleware in isolation.
func NewTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	return c, w
}

// NewTestContextWithRequest creates a Gin context with method/path/body
// set on its Request, JSON-encoding body when non-nil.
func NewTestContextWithRequest(method, path string, body any) (*gin.Context, *httptest.ResponseRecorder) {
	c, w := NewTestContext()

	if body != nil {
		data, _ := json.Marshal(body)
		c.Request = httptest.NewRequest(method, path, bytes.NewReader(data))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, path, nil)
	}
	return c, w
}
