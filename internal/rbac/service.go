package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/shared"
)

// Service orchestrates role administration. Every write runs inside one transaction.
type Service struct {
	repo   Repository
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService constructs a Service. audit and logger may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListRoles returns all roles with their grant sets, ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: get role %d: %w", id, err)
	}
	return role, nil
}

// CreateRole inserts a new role. When in.Permissions is non-nil the grant set is
// attached in the same transaction, otherwise the role starts with no grants.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	in.Nom = normalizeNom(in.Nom)
	if err := httpx.ValidateStruct(in); err != nil {
		return Role{}, err
	}
	grants := dedupeIDs(in.Permissions)

	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureNomFree(ctx, tx, in.Nom, 0); err != nil {
			return err
		}
		if err := ensureKnownPermissions(ctx, tx, grants); err != nil {
			return err
		}
		var err error
		id, err = tx.CreateRole(ctx, in.Nom, in.Cout)
		if err != nil {
			return err
		}
		if len(grants) == 0 {
			return nil
		}
		return tx.ReplaceRoleGrants(ctx, id, grants)
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: create role: %w", err)
	}

	s.record(ctx, "role.create", id, map[string]any{"nom": in.Nom, "cout": in.Cout, "permissions": grants})
	return s.GetRole(ctx, id)
}

// UpdateRole changes name and cost, and replaces the grant set when in.Permissions is non-nil.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	in.Nom = normalizeNom(in.Nom)
	if err := httpx.ValidateStruct(in); err != nil {
		return Role{}, err
	}
	replace := in.Permissions != nil
	grants := dedupeIDs(in.Permissions)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureRoleExists(ctx, tx, id); err != nil {
			return err
		}
		if err := ensureNomFree(ctx, tx, in.Nom, id); err != nil {
			return err
		}
		if replace {
			if err := ensureKnownPermissions(ctx, tx, grants); err != nil {
				return err
			}
		}
		if err := tx.UpdateRole(ctx, id, in.Nom, in.Cout); err != nil {
			return err
		}
		if !replace {
			return nil
		}
		return tx.ReplaceRoleGrants(ctx, id, grants)
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: update role %d: %w", id, err)
	}

	meta := map[string]any{"nom": in.Nom, "cout": in.Cout}
	if replace {
		meta["permissions"] = grants
	}
	s.record(ctx, "role.update", id, meta)
	return s.GetRole(ctx, id)
}

// SetGrants replaces the role's entire grant set. Unknown ids reject the whole call.
func (s *Service) SetGrants(ctx context.Context, roleID int64, permissionIDs []int64) (Role, error) {
	if err := httpx.ValidateStruct(GrantsInput{Permissions: permissionIDs}); err != nil {
		return Role{}, err
	}
	grants := dedupeIDs(permissionIDs)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureRoleExists(ctx, tx, roleID); err != nil {
			return err
		}
		if err := ensureKnownPermissions(ctx, tx, grants); err != nil {
			return err
		}
		return tx.ReplaceRoleGrants(ctx, roleID, grants)
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: set grants of role %d: %w", roleID, err)
	}

	s.record(ctx, "role.grants", roleID, map[string]any{"permissions": grants})
	return s.GetRole(ctx, roleID)
}

// DeleteRole removes the role and its links. Holders lose its grants immediately
// unless opts.RequireUnused turns that case into ErrRoleInUse.
func (s *Service) DeleteRole(ctx context.Context, id int64, opts DeleteOptions) error {
	var holders int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureRoleExists(ctx, tx, id); err != nil {
			return err
		}
		var err error
		holders, err = tx.CountRoleHolders(ctx, id)
		if err != nil {
			return err
		}
		if opts.RequireUnused && holders > 0 {
			return ErrRoleInUse
		}
		return tx.DeleteRole(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("rbac: delete role %d: %w", id, err)
	}

	s.record(ctx, "role.delete", id, map[string]any{"revoked_from": holders})
	return nil
}

// EnsureRole returns the named role, creating it without grants when missing.
func (s *Service) EnsureRole(ctx context.Context, nom string, cout float64) (Role, error) {
	role, err := s.repo.GetRoleByNom(ctx, normalizeNom(nom))
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Role{}, fmt.Errorf("rbac: ensure role %q: %w", nom, err)
	}
	return s.CreateRole(ctx, RoleInput{Nom: nom, Cout: cout})
}

// SyncRoleWithCatalog replaces the named role's grants with every permission in
// the catalog at call time. Permissions added later need another sync.
func (s *Service) SyncRoleWithCatalog(ctx context.Context, nom string) (Role, error) {
	nom = normalizeNom(nom)
	role, err := s.repo.GetRoleByNom(ctx, nom)
	if err != nil {
		return Role{}, fmt.Errorf("rbac: sync role %q: %w", nom, err)
	}

	var granted int
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureRoleExists(ctx, tx, role.ID); err != nil {
			return err
		}
		ids, err := tx.AllPermissionIDs(ctx)
		if err != nil {
			return err
		}
		granted = len(ids)
		return tx.ReplaceRoleGrants(ctx, role.ID, ids)
	})
	if err != nil {
		return Role{}, fmt.Errorf("rbac: sync role %q: %w", nom, err)
	}

	s.record(ctx, "role.sync", role.ID, map[string]any{"granted": granted})
	s.logger.Info("role synced with catalog", slog.String("role", nom), slog.Int("permissions", granted))
	return s.GetRole(ctx, role.ID)
}

func (s *Service) record(ctx context.Context, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("rbac audit", slog.String("action", action), slog.Any("error", err))
	}
}

func ensureRoleExists(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.RoleExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func ensureNomFree(ctx context.Context, tx TxRepository, nom string, excludeID int64) error {
	taken, err := tx.RoleNomTaken(ctx, nom, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return duplicateNameError()
	}
	return nil
}

func ensureKnownPermissions(ctx context.Context, tx TxRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := tx.MissingPermissionIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return unknownPermissionError(missing)
	}
	return nil
}

func duplicateNameError() error {
	return httpx.NewValidationError("nom", "has already been taken", ErrDuplicateName)
}

func unknownPermissionError(missing []int64) error {
	parts := make([]string, len(missing))
	for i, id := range missing {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return httpx.NewValidationError("permissions", "unknown permission ids: "+strings.Join(parts, ", "), ErrUnknownPermission)
}

// normalizeNom trims and NFC-normalises a role name. Comparison stays case-sensitive.
func normalizeNom(nom string) string {
	return norm.NFC.String(strings.TrimSpace(nom))
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
