package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ping/pkg/auth"
)

// Authenticate reads a bearer token from the Authorization header and, when
// it validates, attaches the identity to the request context. A missing or
// invalid token leaves the request unauthenticated and passes it on, since
// explicitly public routes must keep working; Authorize below denies the
// rest.
func Authenticate(tokens *auth.TokenService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			identity, err := tokens.Validate(token)
			if err != nil {
				// Uniform failure: malformed, forged and expired all land here.
				logger.Debug("Token rejected", zap.String("path", r.URL.Path))
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize denies unauthenticated requests to any route outside the public
// allowlist with a generic 401 body.
func Authorize(publicPrefixes []string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, publicPrefixes) {
				next.ServeHTTP(w, r)
				return
			}
			if _, err := auth.IdentityFromContext(r.Context()); err != nil {
				logger.Debug("Authentication required",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
				)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole denies authenticated requests lacking the role with a generic
// 403 body. Role comparison is by variant, never by raw string.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := auth.IdentityFromContext(r.Context())
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authentication required"})
				return
			}
			if !identity.HasRole(role) {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Access denied"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP applies a per-client-IP token bucket.
func RateLimitByIP(limiter *auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientIP(r)) {
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByUser applies a per-username token bucket to authenticated
// requests. Unauthenticated requests pass; the IP limiter covers them.
func RateLimitByUser(limiter *auth.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity, err := auth.IdentityFromContext(r.Context()); err == nil {
				if !limiter.Allow(identity.Username) {
					writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Rate limit exceeded"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isPublic matches entries ending in "/" as prefixes and others exactly.
func isPublic(path string, publicPrefixes []string) bool {
	for _, entry := range publicPrefixes {
		if strings.HasSuffix(entry, "/") {
			if strings.HasPrefix(path, entry) || path == strings.TrimSuffix(entry, "/") {
				return true
			}
		} else if path == entry {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// clientIP extracts the client IP address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
