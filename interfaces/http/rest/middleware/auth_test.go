package middleware

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ping/pkg/auth"
)

var testPublicRoutes = []string{
	"/api/auth/",
	"/uploads/",
	"/ws",
	"/topic/",
	"/app/",
	"/health",
	"/metrics",
}

func newTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	secret := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	tokens, err := auth.NewTokenService(secret, "ping-backend", time.Hour)
	require.NoError(t, err)
	return tokens
}

// gate builds the Authenticate+Authorize chain in front of a handler that
// reports whether an identity reached it.
func gate(tokens *auth.TokenService, sawIdentity *bool) http.Handler {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := auth.IdentityFromContext(r.Context())
		*sawIdentity = err == nil
		w.WriteHeader(http.StatusOK)
	})
	logger := zap.NewNop()
	return Authenticate(tokens, logger)(Authorize(testPublicRoutes, logger)(final))
}

func TestPublicRouteWithoutToken(t *testing.T) {
	tokens := newTokens(t)
	var sawIdentity bool
	handler := gate(tokens, &sawIdentity)

	for _, path := range []string{"/api/auth/login", "/health", "/ws", "/uploads/pic.jpg"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.False(t, sawIdentity, path)
	}
}

func TestProtectedRouteWithoutToken(t *testing.T) {
	tokens := newTokens(t)
	var sawIdentity bool
	handler := gate(tokens, &sawIdentity)

	for _, path := range []string{"/api/friends", "/api/notifications", "/wsx"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		assert.JSONEq(t, `{"error":"Authentication required"}`, rec.Body.String(), path)
	}
}

func TestProtectedRouteWithValidToken(t *testing.T) {
	tokens := newTokens(t)
	var sawIdentity bool
	handler := gate(tokens, &sawIdentity)

	token, err := tokens.Issue(auth.Identity{Username: "alice", Roles: []auth.Role{auth.RoleUser}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawIdentity)
}

// An invalid token gets the same 401 as a missing one.
func TestProtectedRouteWithBadToken(t *testing.T) {
	tokens := newTokens(t)
	var sawIdentity bool
	handler := gate(tokens, &sawIdentity)

	for _, header := range []string{"Bearer garbage", "Basic abc", "Bearer "} {
		req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
		assert.JSONEq(t, `{"error":"Authentication required"}`, rec.Body.String(), header)
	}
}

func TestIsPublicMatching(t *testing.T) {
	tests := []struct {
		path   string
		public bool
	}{
		{"/api/auth/login", true},
		{"/api/auth", true}, // the prefix sans trailing slash
		{"/uploads/a/b.png", true},
		{"/ws", true},
		{"/wsx", false},
		{"/topic/notifications/alice", true},
		{"/health", true},
		{"/healthz", false},
		{"/api/friends", false},
		{"/", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.public, isPublic(tt.path, testPublicRoutes), tt.path)
	}
}

func TestRequireRole(t *testing.T) {
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(auth.RoleAdmin)(final)

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		ctx := auth.WithIdentity(req.Context(), &auth.Identity{Username: "alice", Roles: []auth.Role{auth.RoleUser}})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error":"Access denied"}`, rec.Body.String())
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		ctx := auth.WithIdentity(req.Context(), &auth.Identity{Username: "root", Roles: []auth.Role{auth.RoleUser, auth.RoleAdmin}})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req.WithContext(ctx))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRateLimitByIP(t *testing.T) {
	handler := RateLimitByIP(auth.NewRateLimiter(2))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// A different client keeps its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	other.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
