package auth

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/regnify/regnify-api/internal/api"
)

// MockUserSource is a mock implementation of the UserSource interface.
type MockUserSource struct {
	mock.Mock
}

func (m *MockUserSource) GetUserWithRoles(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserWithRoles), args.Error(1)
}

func (m *MockUserSource) GetUserWithRolesByEmail(ctx context.Context, email string) (*api.UserWithRoles, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserWithRoles), args.Error(1)
}

func (m *MockUserSource) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	tokens := NewTokenService(testJWTConfig())

	email := "jane@example.com"
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	activeUser := func() *api.UserWithRoles {
		return &api.UserWithRoles{
			User: api.User{
				ID:           uuid.New(),
				Email:        email,
				PasswordHash: string(hashedPassword),
				IsActive:     true,
			},
			Roles: []api.Role{{
				ID:          uuid.New(),
				Title:       "viewers",
				Permissions: []string{api.UserScopeRead},
			}},
		}
	}

	t.Run("Success", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		user := activeUser()
		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(user, nil).Once()
		mockUsers.On("UpdateLastLogin", ctx, user.User.ID).Return(nil).Once()

		token, got, err := service.Login(ctx, email, password)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.User.ID, got.User.ID)

		claims, err := tokens.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{api.ScopeMe, api.UserScopeRead}, claims.Scopes)
		mockUsers.AssertExpectations(t)
	})

	t.Run("EmailCasingDoesNotMatter", func(t *testing.T) {
		// Accounts are stored lowercased; the lookup must match whatever
		// casing the caller typed.
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		user := activeUser()
		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(user, nil).Once()
		mockUsers.On("UpdateLastLogin", ctx, user.User.ID).Return(nil).Once()

		token, _, err := service.Login(ctx, " Jane@Example.com ", password)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		mockUsers.AssertExpectations(t)
	})

	t.Run("UnknownEmailAndWrongPasswordLookAlike", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		mockUsers.On("GetUserWithRolesByEmail", ctx, "nobody@example.com").
			Return(nil, api.ErrNotFound).Once()
		_, _, unknownErr := service.Login(ctx, "nobody@example.com", password)

		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(activeUser(), nil).Once()
		_, _, wrongPassErr := service.Login(ctx, email, "wrong-password")

		require.Error(t, unknownErr)
		require.Error(t, wrongPassErr)
		assert.ErrorIs(t, unknownErr, api.ErrUnauthenticated)
		assert.ErrorIs(t, wrongPassErr, api.ErrUnauthenticated)
		assert.Equal(t, unknownErr.Error(), wrongPassErr.Error())
		mockUsers.AssertExpectations(t)
	})

	t.Run("InactiveAccount", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		user := activeUser()
		user.User.IsActive = false
		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(user, nil).Once()

		_, _, err := service.Login(ctx, email, password)
		assert.ErrorIs(t, err, api.ErrAccountInactive)
		mockUsers.AssertExpectations(t)
	})

	t.Run("ElapsedAccessWindow", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		user := activeUser()
		ended := time.Now().Add(-time.Hour)
		user.User.AccessBegin = ended.Add(-24 * time.Hour)
		user.User.AccessEnd = &ended
		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(user, nil).Once()

		_, _, err := service.Login(ctx, email, password)
		assert.ErrorIs(t, err, api.ErrAccountInactive)
		mockUsers.AssertExpectations(t)
	})

	t.Run("LastLoginFailureIsNotFatal", func(t *testing.T) {
		mockUsers := new(MockUserSource)
		service := NewAuthService(mockUsers, tokens, logger, nil)

		user := activeUser()
		mockUsers.On("GetUserWithRolesByEmail", ctx, email).Return(user, nil).Once()
		mockUsers.On("UpdateLastLogin", ctx, user.User.ID).Return(assert.AnError).Once()

		token, _, err := service.Login(ctx, email, password)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		mockUsers.AssertExpectations(t)
	})
}
