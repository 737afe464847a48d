package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maintrack/maintrack/internal/platform/httpx"
)

// Handler exposes the permission catalog and role administration over JSON.
type Handler struct {
	logger  *slog.Logger
	catalog *Catalog
	service *Service
	rbac    Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, service *Service, rbac Middleware) *Handler {
	return &Handler{logger: logger, catalog: catalog, service: service, rbac: rbac}
}

// MountRoutes registers permission and role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(PermAdminPermissions))
		r.Get("/permissions", h.listPermissions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(PermAdminRoles))
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Get("/roles/{id}", h.showRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Put("/roles/{id}/permissions", h.setGrants)
	})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	var (
		perms []Permission
		err   error
	)
	if module, ok := r.URL.Query()["module"]; ok {
		perms, err = h.catalog.ListByModule(r.Context(), module[0])
	} else {
		perms, err = h.catalog.ListAll(r.Context())
	}
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	httpx.JSON(w, http.StatusOK, roles)
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.fail(w, "show role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in RoleInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), in)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	w.Header().Set("Location", "/roles/"+strconv.FormatInt(role.ID, 10))
	httpx.JSON(w, http.StatusCreated, role)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in RoleInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) setGrants(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var in GrantsInput
	if err := httpx.DecodeBody(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if in.Permissions == nil {
		httpx.RespondError(w, httpx.NewValidationError("permissions", "is required", nil))
		return
	}
	role, err := h.service.SetGrants(r.Context(), id, in.Permissions)
	if err != nil {
		h.fail(w, "set grants", err)
		return
	}
	httpx.JSON(w, http.StatusOK, role)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	requireUnused, _ := strconv.ParseBool(r.URL.Query().Get("require_unused"))
	if err := h.service.DeleteRole(r.Context(), id, DeleteOptions{RequireUnused: requireUnused}); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	httpx.NoContent(w)
}

// fail logs unexpected errors before mapping them to a response.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if h.logger != nil && httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
