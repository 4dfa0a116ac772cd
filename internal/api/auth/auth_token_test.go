package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		SecretKey:      "test-access-secret",
		ResetSecretKey: "test-reset-secret",
		Algorithm:      "HS256",
		AccessTokenTTL: 15 * time.Minute,
		ResetTokenTTL:  15 * time.Minute,
	}
}

func testUserWithRoles(isSuperAdmin bool, roles ...api.Role) api.UserWithRoles {
	return api.UserWithRoles{
		User: api.User{
			ID:           uuid.New(),
			Email:        "jane@example.com",
			IsActive:     true,
			IsSuperAdmin: isSuperAdmin,
		},
		Roles: roles,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	service := NewTokenService(testJWTConfig())

	role := api.Role{
		ID:          uuid.New(),
		Title:       "editors",
		Permissions: []string{api.UserScopeRead, api.UserScopeUpdate},
	}
	user := testUserWithRoles(false, role)

	signed, err := service.IssueAccessToken(user)
	require.NoError(t, err)

	claims, err := service.VerifyAccessToken(signed)
	require.NoError(t, err)

	assert.Equal(t, user.User.ID.String(), claims.Subject)
	assert.Equal(t, user.User.ID.String(), claims.UserID)
	assert.Equal(t, user.User.Email, claims.Email)
	assert.True(t, claims.IsActive)
	assert.False(t, claims.SuperAdmin())
	require.Len(t, claims.Roles, 1)
	assert.Equal(t, "editors", claims.Roles[0].Title)
	assert.ElementsMatch(t, []string{api.ScopeMe, api.UserScopeRead, api.UserScopeUpdate}, claims.Scopes)
}

func TestVerifyAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	service := NewTokenService(cfg)

	t.Run("ExpiredToken", func(t *testing.T) {
		short := cfg
		short.AccessTokenTTL = -time.Minute
		expired, err := NewTokenService(short).IssueAccessToken(testUserWithRoles(false))
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(expired)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := cfg
		other.SecretKey = "another-secret"
		signed, err := NewTokenService(other).IssueAccessToken(testUserWithRoles(false))
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(signed)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.VerifyAccessToken("not-a-token")
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})

	t.Run("MissingRequiredClaims", func(t *testing.T) {
		// A token signed with the right secret but without the
		// super-admin claim must be rejected.
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   uuid.NewString(),
			"email": "jane@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte(cfg.SecretKey))
		require.NoError(t, err)

		_, err = service.VerifyAccessToken(signed)
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})
}

func TestResetTokenRoundTrip(t *testing.T) {
	service := NewTokenService(testJWTConfig())
	userID := uuid.New()

	signed, err := service.IssueResetToken(userID)
	require.NoError(t, err)

	got, err := service.VerifyResetToken(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestVerifyResetTokenRejectsAccessToken(t *testing.T) {
	// The two token classes are signed with different secrets and carry a
	// type discriminator; an access token must never redeem a reset.
	service := NewTokenService(testJWTConfig())

	access, err := service.IssueAccessToken(testUserWithRoles(false))
	require.NoError(t, err)

	_, err = service.VerifyResetToken(access)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}

func TestVerifyResetTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	cfg.ResetTokenTTL = -time.Minute
	expired, err := NewTokenService(cfg).IssueResetToken(uuid.New())
	require.NoError(t, err)

	_, err = NewTokenService(testJWTConfig()).VerifyResetToken(expired)
	assert.ErrorIs(t, err, api.ErrUnauthenticated)
}
