package user

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

	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/auth"
)

// MockUserRepo is a mock implementation of the UserRepo interface.
type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockUserRepo) GetUserByEmail(ctx context.Context, email string) (*api.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockUserRepo) GetUserWithRoles(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserWithRoles), args.Error(1)
}

func (m *MockUserRepo) GetUserWithRolesByEmail(ctx context.Context, email string) (*api.UserWithRoles, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserWithRoles), args.Error(1)
}

func (m *MockUserRepo) CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockUserRepo) UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (*api.User, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.User), args.Error(1)
}

func (m *MockUserRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

func (m *MockUserRepo) SetLastResetToken(ctx context.Context, userID uuid.UUID, token string) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

func (m *MockUserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepo) ListUsers(ctx context.Context, page api.PageParams) ([]api.User, int, error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]api.User), args.Int(1), args.Error(2)
}

// MockMailer records mail sends; delivery is asynchronous so expectations use
// Maybe instead of Once.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendNewAccountEmail(ctx context.Context, to, password, ownerName string) error {
	args := m.Called(ctx, to, password, ownerName)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordResetEmail(ctx context.Context, to, token string) error {
	args := m.Called(ctx, to, token)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordChangedEmail(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}

func (m *MockMailer) SendHowToChangePasswordEmail(ctx context.Context, to string) error {
	args := m.Called(ctx, to)
	return args.Error(0)
}

func newRelaxedMailer() *MockMailer {
	mailer := new(MockMailer)
	mailer.On("SendNewAccountEmail", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	mailer.On("SendPasswordResetEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	mailer.On("SendPasswordChangedEmail", mock.Anything, mock.Anything).Return(nil).Maybe()
	mailer.On("SendHowToChangePasswordEmail", mock.Anything, mock.Anything).Return(nil).Maybe()
	return mailer
}

const testSignupToken = "super-secret-signup-token"

func newTestService(repo *MockUserRepo) *UserServiceImpl {
	tokens := auth.NewTokenService(config.JWTConfig{
		SecretKey:      "test-access-secret",
		ResetSecretKey: "test-reset-secret",
		Algorithm:      "HS256",
		AccessTokenTTL: 15 * time.Minute,
		ResetTokenTTL:  15 * time.Minute,
	})
	return NewUserService(repo, tokens, newRelaxedMailer(), config.AdminConfig{
		SignupToken: testSignupToken,
	}, slog.Default())
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()

	baseReq := CreateUserRequest{
		Email:     "new@example.com",
		FirstName: "New",
		LastName:  "Person",
		Password:  "password123",
	}

	t.Run("AdminSignupTokenActivatesAndHonorsSuperAdmin", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		req := baseReq
		req.IsSuperAdmin = true

		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
			return p.IsActive && p.IsSuperAdmin
		})).Return(&api.User{ID: uuid.New(), Email: req.Email, IsActive: true, IsSuperAdmin: true}, nil).Once()

		created, err := service.CreateUser(ctx, req, testSignupToken)
		require.NoError(t, err)
		assert.True(t, created.User.IsActive)
		assert.True(t, created.User.IsSuperAdmin)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WithoutTokenAccountIsInactiveAndDemoted", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		// The request asks for super-admin but presents no signup token.
		req := baseReq
		req.IsSuperAdmin = true

		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
			return !p.IsActive && !p.IsSuperAdmin
		})).Return(&api.User{ID: uuid.New(), Email: req.Email}, nil).Once()

		created, err := service.CreateUser(ctx, req, "")
		require.NoError(t, err)
		assert.False(t, created.User.IsActive)
		assert.False(t, created.User.IsSuperAdmin)
		mockRepo.AssertExpectations(t)
	})

	t.Run("WrongTokenIsSameAsNoToken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		mockRepo.On("CreateUser", ctx, mock.MatchedBy(func(p CreateUserParams) bool {
			return !p.IsActive && !p.IsSuperAdmin
		})).Return(&api.User{ID: uuid.New(), Email: baseReq.Email}, nil).Once()

		_, err := service.CreateUser(ctx, baseReq, "guessed-token")
		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("InvalidAccessWindow", func(t *testing.T) {
		service := newTestService(new(MockUserRepo))

		begin := time.Now().Add(48 * time.Hour)
		end := begin.Add(-time.Hour)
		req := baseReq
		req.AccessBegin = &begin
		req.AccessEnd = &end

		_, err := service.CreateUser(ctx, req, "")
		assert.ErrorIs(t, err, api.ErrValidation)
	})

	t.Run("BeginWithoutEndIsRejected", func(t *testing.T) {
		service := newTestService(new(MockUserRepo))

		begin := time.Now().Add(24 * time.Hour)
		req := baseReq
		req.AccessBegin = &begin

		_, err := service.CreateUser(ctx, req, "")
		assert.ErrorIs(t, err, api.ErrValidation)
	})

	t.Run("ShortPassword", func(t *testing.T) {
		service := newTestService(new(MockUserRepo))

		req := baseReq
		req.Password = "short"
		_, err := service.CreateUser(ctx, req, "")
		assert.ErrorIs(t, err, api.ErrValidation)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		mockRepo.On("CreateUser", ctx, mock.Anything).Return(nil, api.ErrConflict).Once()

		_, err := service.CreateUser(ctx, baseReq, "")
		assert.ErrorIs(t, err, api.ErrConflict)
		mockRepo.AssertExpectations(t)
	})
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	superAdmin := &api.UserWithRoles{User: api.User{ID: uuid.New(), IsSuperAdmin: true}}
	regular := &api.UserWithRoles{User: api.User{ID: uuid.New()}}

	t.Run("PrivilegedFieldsNeedSuperAdmin", func(t *testing.T) {
		service := newTestService(new(MockUserRepo))

		active := true
		_, err := service.UpdateUser(ctx, regular, userID, UpdateUserRequest{IsActive: &active})
		assert.ErrorIs(t, err, api.ErrForbidden)
	})

	t.Run("SuperAdminMayChangeStatus", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		active := true
		mockRepo.On("UpdateUser", ctx, userID, mock.Anything).
			Return(&api.User{ID: userID, IsActive: true}, nil).Once()
		mockRepo.On("GetUserWithRoles", ctx, userID).
			Return(&api.UserWithRoles{User: api.User{ID: userID, IsActive: true}}, nil).Once()

		updated, err := service.UpdateUser(ctx, superAdmin, userID, UpdateUserRequest{IsActive: &active})
		require.NoError(t, err)
		assert.True(t, updated.User.IsActive)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ProfileFieldsNeedNoPrivilege", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		name := "Renamed"
		mockRepo.On("UpdateUser", ctx, userID, mock.Anything).
			Return(&api.User{ID: userID, FirstName: name}, nil).Once()
		mockRepo.On("GetUserWithRoles", ctx, userID).
			Return(&api.UserWithRoles{User: api.User{ID: userID, FirstName: name}}, nil).Once()

		updated, err := service.UpdateUser(ctx, regular, userID, UpdateUserRequest{FirstName: &name})
		require.NoError(t, err)
		assert.Equal(t, name, updated.User.FirstName)
		mockRepo.AssertExpectations(t)
	})
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()

	t.Run("UnknownEmailStillSucceeds", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		mockRepo.On("GetUserByEmail", ctx, "nobody@example.com").Return(nil, api.ErrNotFound).Once()

		err := service.RequestPasswordReset(ctx, "nobody@example.com")
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("KnownEmailStoresToken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		user := &api.User{ID: uuid.New(), Email: "jane@example.com"}
		mockRepo.On("GetUserByEmail", ctx, user.Email).Return(user, nil).Once()
		mockRepo.On("SetLastResetToken", ctx, user.ID, mock.AnythingOfType("string")).Return(nil).Once()

		err := service.RequestPasswordReset(ctx, user.Email)
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("RedeemSucceedsOnceAndClearsToken", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		userID := uuid.New()
		token, err := service.tokens.IssueResetToken(userID)
		require.NoError(t, err)

		user := &api.User{ID: userID, Email: "jane@example.com", LastPasswordToken: token}
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil).Once()
		mockRepo.On("UpdatePasswordHash", ctx, userID, mock.MatchedBy(func(hash string) bool {
			return bcrypt.CompareHashAndPassword([]byte(hash), []byte("brand-new-pass")) == nil
		})).Return(nil).Once()
		mockRepo.On("SetLastResetToken", ctx, userID, "").Return(nil).Once()

		err = service.ChangePasswordWithToken(ctx, token, "brand-new-pass")
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ReplacedOrUsedTokenIsRejected", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		userID := uuid.New()
		token, err := service.tokens.IssueResetToken(userID)
		require.NoError(t, err)

		// Stored token was cleared by a previous redemption.
		user := &api.User{ID: userID, Email: "jane@example.com", LastPasswordToken: ""}
		mockRepo.On("GetUserByID", ctx, userID).Return(user, nil).Once()

		err = service.ChangePasswordWithToken(ctx, token, "brand-new-pass")
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
		mockRepo.AssertExpectations(t)
	})

	t.Run("AccessTokenCannotRedeem", func(t *testing.T) {
		service := newTestService(new(MockUserRepo))

		access, err := service.tokens.IssueAccessToken(api.UserWithRoles{
			User: api.User{ID: uuid.New(), Email: "jane@example.com", IsActive: true},
		})
		require.NoError(t, err)

		err = service.ChangePasswordWithToken(ctx, access, "brand-new-pass")
		assert.ErrorIs(t, err, api.ErrUnauthenticated)
	})
}

func TestAdminSetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		user := &api.User{ID: uuid.New(), Email: "jane@example.com"}
		mockRepo.On("GetUserByID", ctx, user.ID).Return(user, nil).Once()
		mockRepo.On("UpdatePasswordHash", ctx, user.ID, mock.AnythingOfType("string")).Return(nil).Once()

		assert.NoError(t, service.AdminSetPassword(ctx, user.ID, "brand-new-pass"))
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		mockRepo := new(MockUserRepo)
		service := newTestService(mockRepo)

		userID := uuid.New()
		mockRepo.On("GetUserByID", ctx, userID).Return(nil, api.ErrNotFound).Once()

		err := service.AdminSetPassword(ctx, userID, "brand-new-pass")
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestDefaultAvatarURL(t *testing.T) {
	assert.Equal(t,
		"https://ui-avatars.com/api/?name=Doe+Jane&size=300",
		DefaultAvatarURL("Jane", "Doe"))
}
