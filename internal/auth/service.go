package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/maintrack/maintrack/internal/platform/httpx"
	"github.com/maintrack/maintrack/internal/rbac"
	"github.com/maintrack/maintrack/internal/shared"
	"github.com/maintrack/maintrack/internal/users"
)

// UserLoader loads the public view of a user.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// PermissionLoader computes the effective permission set of a user.
type PermissionLoader interface {
	EffectivePermissions(ctx context.Context, userID int64) (rbac.PermissionSet, error)
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	sessions *SessionStore
	tokens   *TokenIssuer
	users    UserLoader
	perms    PermissionLoader
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *SessionStore, tokens *TokenIssuer, userLoader UserLoader, perms PermissionLoader, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, sessions: sessions, tokens: tokens, users: userLoader, perms: perms, logger: logger}
}

// Login validates credentials, opens a session and returns the bearer token
// together with the user's permission mapping.
func (s *Service) Login(ctx context.Context, in LoginInput, meta ClientMeta) (LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := httpx.ValidateStruct(in); err != nil {
		return LoginResult{}, err
	}
	creds, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return LoginResult{}, shared.ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("auth: find credentials: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(in.Password)); err != nil {
		return LoginResult{}, shared.ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := s.tokens.Issue(creds.ID, sessionID)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.sessions.Create(ctx, sessionID, creds.ID, s.tokens.TTL()); err != nil {
		return LoginResult{}, err
	}
	if err := s.repo.CreateSession(ctx, sessionID, creds.ID, expiresAt, meta.IP, meta.UserAgent); err != nil {
		s.logger.Warn("register session", slog.Any("error", err), slog.Int64("user_id", creds.ID))
	}

	profile, err := s.Profile(ctx, creds.ID)
	if err != nil {
		_ = s.sessions.Delete(ctx, sessionID)
		return LoginResult{}, err
	}
	s.logger.Info("user logged in", slog.Int64("user_id", creds.ID), slog.String("session_id", sessionID))
	return LoginResult{
		Token:       token,
		ExpiresAt:   expiresAt,
		User:        profile.User,
		Permissions: profile.Permissions,
	}, nil
}

// Profile loads the user and its flattened permission mapping concurrently.
// A user that no longer exists yields rbac.ErrUserNotFound.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	var (
		user users.User
		set  rbac.PermissionSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.users.GetUser(gctx, userID)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				return rbac.ErrUserNotFound
			}
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		p, err := s.perms.EffectivePermissions(gctx, userID)
		if err != nil {
			return err
		}
		set = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return Profile{}, err
	}
	return Profile{User: user, Permissions: set.Map()}, nil
}

// Resolve maps a bearer token to the identity of a live session.
func (s *Service) Resolve(ctx context.Context, bearer string) (shared.Identity, error) {
	claims, err := s.tokens.Parse(bearer)
	if err != nil {
		return shared.Identity{}, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return shared.Identity{}, err
	}
	owner, err := s.sessions.Lookup(ctx, claims.ID)
	if err != nil {
		return shared.Identity{}, err
	}
	if owner != userID {
		return shared.Identity{}, shared.ErrInvalidToken
	}
	return shared.Identity{UserID: userID, SessionID: claims.ID}, nil
}

// Logout revokes the session. Revoking an unknown session is not an error.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := s.repo.DeleteSession(ctx, sessionID); err != nil {
		s.logger.Warn("remove session", slog.Any("error", err), slog.String("session_id", sessionID))
	}
	return nil
}
