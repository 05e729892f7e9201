// Package testutil holds helpers shared by the end-to-end suites: an HTTP
// client for the JSON envelope and event recording utilities.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/storefront/inventory/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Envelope mirrors dto.Response with the payload left raw for typed decoding
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// APIClient sends requests straight to an http.Handler
type APIClient struct {
	Handler http.Handler
	// Headers are added to every request
	Headers map[string]string
}

// NewAPIClient creates a client for handler
func NewAPIClient(handler http.Handler) *APIClient {
	return &APIClient{Handler: handler, Headers: map[string]string{}}
}

// Do sends one request. body is marshalled to JSON unless nil.
// headers are key/value pairs applied after the client defaults.
func (c *APIClient) Do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	require.True(t, len(headers)%2 == 0, "headers must be key/value pairs")

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err, "Failed to marshal request body")
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for i := 0; i < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)
	return w
}

// DecodeEnvelope parses the response body as the API envelope
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

// DecodeData asserts a successful response with wantStatus and decodes its data into T
func DecodeData[T any](t *testing.T, w *httptest.ResponseRecorder, wantStatus int) T {
	t.Helper()

	require.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success)

	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

// AssertErrorCode asserts an error response with the given status and code
func AssertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) *dto.ErrorInfo {
	t.Helper()

	assert.Equal(t, wantStatus, w.Code, "body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	assert.False(t, env.Success)
	require.NotNil(t, env.Error, "expected error object in response")
	assert.Equal(t, wantCode, env.Error.Code)
	return env.Error
}
