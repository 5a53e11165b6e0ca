package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialcore/infrastructure/config"
	"socialcore/infrastructure/di"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, rateLimit int) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Environment:           "test",
		AWSRegion:             "us-west-2",
		TableName:             "socialcore-test",
		StoreBackend:          config.StoreMemory,
		LogLevel:              "error",
		FlagThresholdRatio:    0.1,
		AppliedMarkerTTLHours: 1,
		MetricsNamespace:      "Test",
		EnableMetrics:         true,
		EnableCORS:            true,
		RateLimitPerMinute:    rateLimit,
	}
	c, err := di.InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Cache.Close)

	return NewRouter(c.CommandBus, c.QueryBus, c.RateLimiter, c.Metrics, cfg, c.Logger).Setup()
}

func do(t *testing.T, h http.Handler, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.True(t, env.Success, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, v))
}

func TestRouter_Health(t *testing.T) {
	h := newTestServer(t, 100)

	rec := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_RequiresIdentity(t *testing.T) {
	h := newTestServer(t, 100)

	rec := do(t, h, http.MethodGet, "/api/v1/me/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_PostLifecycle(t *testing.T) {
	h := newTestServer(t, 100)

	rec := do(t, h, http.MethodPost, "/api/v1/users", "alice", map[string]string{"username": "alice"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/posts", "alice", map[string]string{"postType": "TEXT", "text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var post struct {
		PostID string `json:"postId"`
		Status string `json:"status"`
	}
	decode(t, rec, &post)
	require.NotEmpty(t, post.PostID)
	assert.Equal(t, "COMPLETED", post.Status)

	rec = do(t, h, http.MethodGet, "/api/v1/users/alice/posts", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page struct {
		Items []struct {
			PostID string `json:"postId"`
		} `json:"items"`
	}
	decode(t, rec, &page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, post.PostID, page.Items[0].PostID)

	rec = do(t, h, http.MethodPost, "/api/v1/posts/"+post.PostID+"/archive", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/v1/users/alice/posts?status=ARCHIVED", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &page)
	assert.Len(t, page.Items, 1)
}

func TestRouter_RejectsInvalidInput(t *testing.T) {
	h := newTestServer(t, 100)

	rec := do(t, h, http.MethodPost, "/api/v1/posts", "alice", map[string]string{"postType": "AUDIO"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/users", "alice", map[string]string{"unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/users/alice/follow", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RateLimit(t *testing.T) {
	h := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		rec := do(t, h, http.MethodGet, "/api/v1/me/cards", "carol", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec := do(t, h, http.MethodGet, "/api/v1/me/cards", "carol", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do(t, h, http.MethodGet, "/api/v1/me/cards", "dave", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
