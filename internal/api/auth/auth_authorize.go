package auth

import (
	"fmt"
	"strings"

	"github.com/regnify/regnify-api/internal/api"
)

// AuthzError is a scope-resolution denial. It records which scopes the route
// required and the WWW-Authenticate challenge to return, but deliberately not
// whether the token snapshot or the live permission set was missing them.
type AuthzError struct {
	RequiredScopes []string
}

func (e *AuthzError) Error() string {
	if len(e.RequiredScopes) == 0 {
		return "not enough permissions"
	}
	return fmt.Sprintf("not enough permissions, required scopes: %s", strings.Join(e.RequiredScopes, " "))
}

func (e *AuthzError) Unwrap() error { return api.ErrForbidden }

// Challenge returns the WWW-Authenticate value naming the challenged scopes.
func (e *AuthzError) Challenge() string {
	return ChallengeValue(e.RequiredScopes)
}

func ChallengeValue(scopes []string) string {
	if len(scopes) == 0 {
		return "Bearer"
	}
	return fmt.Sprintf("Bearer scope=%q", strings.Join(scopes, " "))
}

// Authorize decides allow/deny for a request declaring requiredScopes.
//
// Two predicates are evaluated in a fixed order. First the super-admin
// bypass: a super-admin snapshot allows unconditionally. Then the full scope
// check: every required scope must be present both in the token's snapshot
// and in liveScopes, the permission set re-derived from storage. The live
// check makes role edits and unassignments take effect on the very next
// request instead of waiting for token expiry.
func Authorize(claims *Claims, requiredScopes []string, liveScopes []string) error {
	if claims.SuperAdmin() {
		return nil
	}

	snapshot := toSet(claims.Scopes)
	live := toSet(liveScopes)
	for _, scope := range requiredScopes {
		if _, ok := snapshot[scope]; !ok {
			return &AuthzError{RequiredScopes: requiredScopes}
		}
		if _, ok := live[scope]; !ok {
			return &AuthzError{RequiredScopes: requiredScopes}
		}
	}
	return nil
}

func toSet(scopes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return set
}
