package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/token"
)

const AuthIdentity = "middleware.auth.identity"

// IsAuthenticated is the authorization gate in front of every protected
// route. It verifies the bearer token locally (no I/O) and binds the
// resolved identity into the request context. The response never reveals
// whether a credential was invalid or merely expired; the log does.
func IsAuthenticated(cfg *config.Config, logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")

			// Check that the header begins with a prefix of Bearer
			if !strings.HasPrefix(authorization, "Bearer ") {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error": "missing credentials",
				})
				return
			}

			// Pull out the token
			raw := strings.TrimPrefix(authorization, "Bearer ")
			claims, err := token.Verify(raw, cfg.JWTConfig.ApiSecret)
			if err != nil {
				logger.Warn("Rejected bearer token",
					slog.String("path", r.URL.Path),
					slog.Any("error", err),
				)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]any{
					"error": "invalid or expired token",
				})
				return
			}

			ctx := context.WithValue(r.Context(), AuthIdentity, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the verified claims bound by
// IsAuthenticated. Handlers behind the gate may rely on it being present.
func IdentityFromContext(ctx context.Context) (*token.TukioClaims, bool) {
	claims, ok := ctx.Value(AuthIdentity).(*token.TukioClaims)
	return claims, ok && claims != nil
}
