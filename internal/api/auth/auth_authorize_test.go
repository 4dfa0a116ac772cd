package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regnify/regnify-api/internal/api"
)

func boolPtr(b bool) *bool { return &b }

func TestAuthorize(t *testing.T) {
	required := []string{api.RoleScopeCreate}

	t.Run("SuperAdminBypass", func(t *testing.T) {
		// No roles, no scopes: the bypass is absolute.
		claims := &Claims{IsSuperAdmin: boolPtr(true)}
		assert.NoError(t, Authorize(claims, required, nil))
	})

	t.Run("AllowedWhenSnapshotAndLiveAgree", func(t *testing.T) {
		claims := &Claims{
			IsSuperAdmin: boolPtr(false),
			Scopes:       []string{api.ScopeMe, api.RoleScopeCreate},
		}
		assert.NoError(t, Authorize(claims, required, []string{api.ScopeMe, api.RoleScopeCreate}))
	})

	t.Run("DeniedWhenSnapshotMissesScope", func(t *testing.T) {
		claims := &Claims{
			IsSuperAdmin: boolPtr(false),
			Scopes:       []string{api.ScopeMe},
		}
		err := Authorize(claims, required, []string{api.ScopeMe, api.RoleScopeCreate})
		assert.ErrorIs(t, err, api.ErrForbidden)
	})

	t.Run("DeniedWhenLiveMissesScope", func(t *testing.T) {
		// The token still carries the scope but the role was unassigned
		// after issuance; the live re-check denies on the next request.
		claims := &Claims{
			IsSuperAdmin: boolPtr(false),
			Scopes:       []string{api.ScopeMe, api.RoleScopeCreate},
		}
		err := Authorize(claims, required, []string{api.ScopeMe})
		assert.ErrorIs(t, err, api.ErrForbidden)
	})

	t.Run("BothDenialsAreIndistinguishable", func(t *testing.T) {
		snapshotMiss := Authorize(&Claims{
			IsSuperAdmin: boolPtr(false),
			Scopes:       []string{api.ScopeMe},
		}, required, []string{api.ScopeMe, api.RoleScopeCreate})
		liveMiss := Authorize(&Claims{
			IsSuperAdmin: boolPtr(false),
			Scopes:       []string{api.ScopeMe, api.RoleScopeCreate},
		}, required, []string{api.ScopeMe})

		require.Error(t, snapshotMiss)
		require.Error(t, liveMiss)
		assert.Equal(t, snapshotMiss.Error(), liveMiss.Error())
	})

	t.Run("NoScopesRequired", func(t *testing.T) {
		claims := &Claims{IsSuperAdmin: boolPtr(false)}
		assert.NoError(t, Authorize(claims, nil, nil))
	})
}

func TestChallengeValue(t *testing.T) {
	assert.Equal(t, "Bearer", ChallengeValue(nil))
	assert.Equal(t, `Bearer scope="user:read user:update"`,
		ChallengeValue([]string{api.UserScopeRead, api.UserScopeUpdate}))
}

func TestAuthzErrorChallenge(t *testing.T) {
	err := &AuthzError{RequiredScopes: []string{api.RoleScopeDelete}}
	assert.Equal(t, `Bearer scope="role:delete"`, err.Challenge())
	assert.ErrorIs(t, err, api.ErrForbidden)
}
