package rbac

import "sort"

// PermissionSet is the effective set of tokens a user holds.
type PermissionSet map[string]struct{}

// NewPermissionSet builds the union of the given permissions.
func NewPermissionSet(perms []Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p.Token()] = struct{}{}
	}
	return set
}

// Has reports whether token is granted.
func (s PermissionSet) Has(token string) bool {
	_, ok := s[token]
	return ok
}

// HasAll reports whether every token is granted. An empty list is never satisfied.
func (s PermissionSet) HasAll(tokens ...string) bool {
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one token is granted.
func (s PermissionSet) HasAny(tokens ...string) bool {
	for _, t := range tokens {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// Tokens returns the sorted tokens.
func (s PermissionSet) Tokens() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Map returns the flattened token -> true mapping sent to clients.
func (s PermissionSet) Map() map[string]bool {
	out := make(map[string]bool, len(s))
	for t := range s {
		out[t] = true
	}
	return out
}
