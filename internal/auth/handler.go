package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(RequireIdentity)
			r.Post("/logout", h.handleLogout)
			r.Get("/me", h.handleMe)
		})
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Login(r.Context(), in, ClientMeta{IP: r.RemoteAddr, UserAgent: r.UserAgent()})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	if err := h.service.Logout(r.Context(), id.SessionID); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := shared.IdentityFromContext(r.Context())
	profile, err := h.service.Profile(r.Context(), id.UserID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, profile)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidCredentials):
		httpx.Message(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, rbac.ErrUserNotFound):
		httpx.Message(w, http.StatusUnauthorized, httpx.MessageUserNotFound)
	default:
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("auth request failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
