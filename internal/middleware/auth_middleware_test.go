package middleware_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/middleware"
	"github.com/tukio-events/tukio/internal/token"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.JWTConfig.ApiSecret = "gate-test-secret"
	cfg.JWTConfig.UserExpireHours = 24
	cfg.JWTConfig.GuestExpireHours = 2
	return cfg
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The handler behind the gate must never run for a rejected request; that
// is what keeps unauthenticated traffic away from the store entirely.
func gatedHandler(t *testing.T, cfg *config.Config, reached *bool) http.Handler {
	t.Helper()
	gate := middleware.IsAuthenticated(cfg, testLogger())
	return gate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		_, ok := middleware.IdentityFromContext(r.Context())
		assert.True(t, ok, "identity must be bound for authenticated requests")
		w.WriteHeader(http.StatusOK)
	}))
}

func TestGateRejectsMissingHeader(t *testing.T) {
	cfg := testConfig()
	reached := false

	req := httptest.NewRequest(http.MethodPost, "/api/events/abc/attend", nil)
	rr := httptest.NewRecorder()
	gatedHandler(t, cfg, &reached).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, reached)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "missing credentials", body["error"])
}

func TestGateRejectsMissingBearerPrefix(t *testing.T) {
	cfg := testConfig()
	reached := false

	signed, err := token.Issue(uuid.New(), token.RoleUser, cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/events/abc/attend", nil)
	req.Header.Set("Authorization", signed) // no "Bearer " prefix
	rr := httptest.NewRecorder()
	gatedHandler(t, cfg, &reached).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, reached)
}

func TestGateRejectsMalformedToken(t *testing.T) {
	cfg := testConfig()
	reached := false

	req := httptest.NewRequest(http.MethodPost, "/api/events/abc/attend", nil)
	req.Header.Set("Authorization", "Bearer not-a-real-token")
	rr := httptest.NewRecorder()
	gatedHandler(t, cfg, &reached).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, reached)

	// The caller is told nothing about why.
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "invalid or expired token", body["error"])
}

func TestGateRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	reached := false

	// A guest token issued three hours ago would be one hour past its
	// two hour lifetime.
	cfg.JWTConfig.GuestExpireHours = -1
	signed, err := token.Issue(uuid.New(), token.RoleGuest, cfg)
	require.NoError(t, err)
	cfg.JWTConfig.GuestExpireHours = 2

	req := httptest.NewRequest(http.MethodPost, "/api/events/abc/attend", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	gatedHandler(t, cfg, &reached).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, reached)

	// Expired reads exactly like forged from the outside.
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "invalid or expired token", body["error"])
}

func TestGateAdmitsValidToken(t *testing.T) {
	cfg := testConfig()
	reached := false

	signed, err := token.Issue(uuid.New(), token.RoleUser, cfg)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/events/abc/attend", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rr := httptest.NewRecorder()
	gatedHandler(t, cfg, &reached).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, reached)
}
