package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/rbac"
)

// Handler manages user and section endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user and section routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermAdminUsers))
		r.Get("/users", h.listUsers)
		r.Post("/users", h.createUser)
		r.Get("/users/{id}", h.showUser)
		r.Put("/users/{id}", h.updateUser)
		r.Delete("/users/{id}", h.deleteUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermSectionList))
		r.Get("/sections", h.listSections)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PermSectionManage))
		r.Post("/sections", h.createSection)
		r.Put("/sections/{id}/responsable", h.setResponsable)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, "show user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	w.Header().Set("Location", "/users/"+strconv.FormatInt(u.ID, 10))
	httpx.JSON(w, http.StatusCreated, u)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in UpdateUserInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	u, err := h.service.UpdateUser(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.service.ListSections(r.Context())
	if err != nil {
		h.fail(w, "list sections", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sections)
}

func (h *Handler) createSection(w http.ResponseWriter, r *http.Request) {
	var in SectionInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.CreateSection(r.Context(), in)
	if err != nil {
		h.fail(w, "create section", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, s)
}

func (h *Handler) setResponsable(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in ResponsableInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	s, err := h.service.SetSectionResponsable(r.Context(), id, in.UserID)
	if err != nil {
		h.fail(w, "set responsable", err)
		return
	}
	httpx.JSON(w, http.StatusOK, s)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
