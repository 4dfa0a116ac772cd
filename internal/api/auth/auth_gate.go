package auth

import (
	"time"

	"github.com/regnify/regnify-api/internal/api"
)

// IsUsable reports whether the account may authenticate or remain
// authenticated at the given instant: the active flag must be set and the
// instant must fall inside the [access_begin, access_end] window. A zero
// access_begin means no lower bound; a nil access_end means unbounded.
//
// The gate is evaluated against live account state on every authenticated
// request, not only at login, so deactivation and window expiry cut off
// sessions that still hold an unexpired token.
func IsUsable(u api.User, now time.Time) bool {
	if !u.IsActive {
		return false
	}
	if !u.AccessBegin.IsZero() && now.Before(u.AccessBegin) {
		return false
	}
	if u.AccessEnd != nil && now.After(*u.AccessEnd) {
		return false
	}
	return true
}
