package rbac

import (
	"context"
	"fmt"
	"strings"
)

// DecisionObserver receives every authorization outcome.
type DecisionObserver interface {
	ObserveDecision(token string, allowed bool)
}

// Authorizer decides whether a user holds a permission token. Each call re-reads
// the grant graph, so a committed grant change is visible to the next check.
type Authorizer struct {
	repo     Repository
	observer DecisionObserver
}

// NewAuthorizer constructs an Authorizer. observer may be nil.
func NewAuthorizer(repo Repository, observer DecisionObserver) *Authorizer {
	return &Authorizer{repo: repo, observer: observer}
}

// EffectivePermissions returns the union of the grant sets of every role the user holds.
// ErrUserNotFound is returned when the user does not exist.
func (a *Authorizer) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	if userID <= 0 {
		return nil, ErrUserNotFound
	}
	perms, err := a.repo.UserGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rbac: effective permissions of user %d: %w", userID, err)
	}
	return NewPermissionSet(perms), nil
}

// Authorize reports whether the user holds token.
func (a *Authorizer) Authorize(ctx context.Context, userID int64, token string) (bool, error) {
	token = strings.TrimSpace(token)
	set, err := a.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := token != "" && set.Has(token)
	a.observe(token, allowed)
	return allowed, nil
}

// AuthorizeAll reports whether the user holds every token. A list that is empty
// after trimming is denied.
func (a *Authorizer) AuthorizeAll(ctx context.Context, userID int64, tokens ...string) (bool, error) {
	tokens = normalizeTokens(tokens)
	set, err := a.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := len(tokens) > 0 && set.HasAll(tokens...)
	a.observe(strings.Join(tokens, ","), allowed)
	return allowed, nil
}

// AuthorizeAny reports whether the user holds at least one token. A list that is
// empty after trimming is denied.
func (a *Authorizer) AuthorizeAny(ctx context.Context, userID int64, tokens ...string) (bool, error) {
	tokens = normalizeTokens(tokens)
	set, err := a.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := len(tokens) > 0 && set.HasAny(tokens...)
	a.observe(strings.Join(tokens, "|"), allowed)
	return allowed, nil
}

func (a *Authorizer) observe(token string, allowed bool) {
	if a.observer == nil {
		return
	}
	a.observer.ObserveDecision(token, allowed)
}

// normalizeTokens trims and dedupes tokens. Case is significant.
func normalizeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
