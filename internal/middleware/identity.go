package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/inkpost/inkpost/internal/auth"
	"github.com/inkpost/inkpost/internal/model"
)

// IdentityConfig holds configuration for the identity middleware.
type IdentityConfig struct {
	Logger    *slog.Logger
	Providers []auth.Provider
}

// Identity resolves the caller and stores the principal in the request context.
// Providers are consulted in order and the first principal wins. Requests
// without credentials continue anonymously; invalid credentials get a 401.
func Identity(cfg IdentityConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var principal *model.Principal

			for _, provider := range cfg.Providers {
				p, err := provider.Resolve(r)
				if errors.Is(err, auth.ErrInvalidCredentials) {
					cfg.Logger.Warn("authentication failed",
						slog.String("reason", "invalid_credentials"),
						slog.String("ip", r.RemoteAddr),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "invalid credentials")
					return
				}
				if err != nil {
					cfg.Logger.Error("identity provider failed",
						slog.String("error", err.Error()),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
					return
				}
				if p != nil {
					principal = p
					break
				}
			}

			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			reportUserID(r.Context(), principal.ID)
			next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
