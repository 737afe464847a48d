package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Authorizer *Authorizer
	Logger     *slog.Logger
}

type checkFunc func(ctx context.Context, userID int64) (bool, error)

// Require ensures the current user holds the permission token.
func (m Middleware) Require(token string) func(http.Handler) http.Handler {
	return m.guard("rbac require", func(ctx context.Context, userID int64) (bool, error) {
		return m.Authorizer.Authorize(ctx, userID, token)
	})
}

func (m Middleware) guard(op string, check checkFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := shared.IdentityFromContext(r.Context())
			if !ok {
				httpx.Message(w, http.StatusUnauthorized, httpx.MessageUnauthenticated)
				return
			}
			allowed, err := check(r.Context(), id.UserID)
			switch {
			case errors.Is(err, ErrUserNotFound):
				httpx.Message(w, http.StatusUnauthorized, httpx.MessageUserNotFound)
				return
			case err != nil:
				if m.Logger != nil {
					m.Logger.Error(op, slog.Int64("user_id", id.UserID), slog.Any("error", err))
				}
				httpx.Message(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				return
			case !allowed:
				httpx.Message(w, http.StatusForbidden, httpx.MessageForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
