package users

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/shared"
)

// Service handles user and section business logic.
type Service struct {
	repo     Repository
	audit    shared.AuditRecorder
	logger   *slog.Logger
	hashCost int
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, hashCost: bcrypt.DefaultCost}
}

// ListUsers returns all users with their roles.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list: %w", err)
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// GetUser fetches one user with its roles.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, fmt.Errorf("users: get %d: %w", id, err)
	}
	return u, nil
}

// CreateUser registers a user. Roles, when given, are attached in the same transaction.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	in.Nom = strings.TrimSpace(in.Nom)
	in.Email = normalizeEmail(in.Email)
	if err := httpx.ValidateStruct(in); err != nil {
		return User{}, err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	roles := dedupeIDs(in.Roles)
	u := User{Nom: in.Nom, Email: in.Email, PasswordHash: hash, SectionID: in.SectionID}

	var id int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureEmailFree(ctx, tx, u.Email, 0); err != nil {
			return err
		}
		if err := ensureSection(ctx, tx, u.SectionID); err != nil {
			return err
		}
		if err := ensureKnownRoles(ctx, tx, roles); err != nil {
			return err
		}
		var err error
		id, err = tx.CreateUser(ctx, u)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return nil
		}
		return tx.ReplaceUserRoles(ctx, id, roles)
	})
	if err != nil {
		return User{}, fmt.Errorf("users: create: %w", err)
	}

	s.record(ctx, "user.create", "user", id, map[string]any{"email": u.Email, "roles": roles})
	return s.GetUser(ctx, id)
}

// UpdateUser edits a user. A non-nil Roles fully replaces the held roles.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (User, error) {
	in.Nom = strings.TrimSpace(in.Nom)
	in.Email = normalizeEmail(in.Email)
	if err := httpx.ValidateStruct(in); err != nil {
		return User{}, err
	}
	u := User{ID: id, Nom: in.Nom, Email: in.Email, SectionID: in.SectionID}
	withPassword := in.Password != ""
	if withPassword {
		hash, err := s.hash(in.Password)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = hash
	}
	replaceRoles := in.Roles != nil
	roles := dedupeIDs(in.Roles)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureUserExists(ctx, tx, id); err != nil {
			return err
		}
		if err := ensureEmailFree(ctx, tx, u.Email, id); err != nil {
			return err
		}
		if err := ensureSection(ctx, tx, u.SectionID); err != nil {
			return err
		}
		if replaceRoles {
			if err := ensureKnownRoles(ctx, tx, roles); err != nil {
				return err
			}
		}
		if err := tx.UpdateUser(ctx, u, withPassword); err != nil {
			return err
		}
		if !replaceRoles {
			return nil
		}
		return tx.ReplaceUserRoles(ctx, id, roles)
	})
	if err != nil {
		return User{}, fmt.Errorf("users: update %d: %w", id, err)
	}

	meta := map[string]any{"email": u.Email, "password_changed": withPassword}
	if replaceRoles {
		meta["roles"] = roles
	}
	s.record(ctx, "user.update", "user", id, meta)
	return s.GetUser(ctx, id)
}

// DeleteUser removes a user and its role links. Issued tokens are left to expire;
// the authorization check reports them as "user not found".
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := ensureUserExists(ctx, tx, id); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("users: delete %d: %w", id, err)
	}
	s.record(ctx, "user.delete", "user", id, nil)
	return nil
}

// ListSections returns every section ordered by name.
func (s *Service) ListSections(ctx context.Context) ([]Section, error) {
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return nil, fmt.Errorf("users: list sections: %w", err)
	}
	if sections == nil {
		sections = []Section{}
	}
	return sections, nil
}

// CreateSection adds a section without responsable.
func (s *Service) CreateSection(ctx context.Context, in SectionInput) (Section, error) {
	in.Nom = strings.TrimSpace(in.Nom)
	if err := httpx.ValidateStruct(in); err != nil {
		return Section{}, err
	}
	var id int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.SectionNomTaken(ctx, in.Nom)
		if err != nil {
			return err
		}
		if taken {
			return httpx.NewValidationError("nom", "has already been taken", ErrDuplicateSection)
		}
		id, err = tx.CreateSection(ctx, in.Nom)
		return err
	})
	if err != nil {
		return Section{}, fmt.Errorf("users: create section: %w", err)
	}
	s.record(ctx, "section.create", "section", id, map[string]any{"nom": in.Nom})
	return s.repo.GetSection(ctx, id)
}

// SetSectionResponsable designates the section's responsable, or clears it when
// userID is nil. The designation changes no permission.
func (s *Service) SetSectionResponsable(ctx context.Context, sectionID int64, userID *int64) (Section, error) {
	if err := httpx.ValidateStruct(ResponsableInput{UserID: userID}); err != nil {
		return Section{}, err
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.SectionExists(ctx, sectionID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSectionNotFound
		}
		if userID != nil {
			ok, err := tx.UserExists(ctx, *userID)
			if err != nil {
				return err
			}
			if !ok {
				return httpx.NewValidationError("user_id", "does not exist", ErrUnknownUser)
			}
		}
		return tx.SetSectionResponsable(ctx, sectionID, userID)
	})
	if err != nil {
		return Section{}, fmt.Errorf("users: section %d responsable: %w", sectionID, err)
	}
	s.record(ctx, "section.responsable", "section", sectionID, map[string]any{"user_id": userID})
	return s.repo.GetSection(ctx, sectionID)
}

// maxPasswordBytes is the bcrypt input limit. The validator counts runes, so
// multibyte passwords are checked again here.
const maxPasswordBytes = 72

func (s *Service) hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", httpx.NewValidationError("password", "must be at most 72 bytes", nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("users: hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("users audit", slog.String("action", action), slog.Any("error", err))
	}
}

func ensureUserExists(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.UserExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func ensureEmailFree(ctx context.Context, tx TxRepository, email string, excludeID int64) error {
	taken, err := tx.EmailTaken(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return duplicateEmailError()
	}
	return nil
}

func ensureSection(ctx context.Context, tx TxRepository, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := tx.SectionExists(ctx, *id)
	if err != nil {
		return err
	}
	if !ok {
		return httpx.NewValidationError("section_id", "does not exist", ErrUnknownSection)
	}
	return nil
}

func ensureKnownRoles(ctx context.Context, tx TxRepository, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := tx.MissingRoleIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}
	parts := make([]string, len(missing))
	for i, id := range missing {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return httpx.NewValidationError("roles", "unknown role ids: "+strings.Join(parts, ", "), ErrUnknownRole)
}

func duplicateEmailError() error {
	return httpx.NewValidationError("email", "has already been taken", ErrDuplicateEmail)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
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
