package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/shared"
)

// Authenticate attaches the identity of a valid bearer token to the request context.
// Requests without a usable token continue anonymously.
func Authenticate(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := svc.Resolve(r.Context(), raw)
			if err != nil {
				if errors.Is(err, shared.ErrInvalidToken) {
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("resolve session", slog.Any("error", err))
				httpx.Message(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := shared.IdentityFromContext(r.Context()); !ok {
			httpx.Message(w, http.StatusUnauthorized, httpx.MessageUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
