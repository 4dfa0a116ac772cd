package role

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/regnify/regnify-api/internal/api"
)

// MockRoleRepo is a mock implementation of the RoleRepo interface.
type MockRoleRepo struct {
	mock.Mock
}

func (m *MockRoleRepo) CreateRole(ctx context.Context, params CreateRoleParams) (*api.Role, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Role), args.Error(1)
}

func (m *MockRoleRepo) GetRole(ctx context.Context, roleID uuid.UUID) (*api.Role, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Role), args.Error(1)
}

func (m *MockRoleRepo) UpdateRole(ctx context.Context, roleID uuid.UUID, params UpdateRoleParams) (*api.Role, error) {
	args := m.Called(ctx, roleID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.Role), args.Error(1)
}

func (m *MockRoleRepo) DeleteRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	args := m.Called(ctx, roleID)
	return args.Int(0), args.Error(1)
}

func (m *MockRoleRepo) ListRoles(ctx context.Context, params ListRolesParams) ([]api.Role, int, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]api.Role), args.Int(1), args.Error(2)
}

func (m *MockRoleRepo) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (*api.UserRole, error) {
	args := m.Called(ctx, userID, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*api.UserRole), args.Error(1)
}

func (m *MockRoleRepo) UnassignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	args := m.Called(ctx, userID, roleID)
	return args.Error(0)
}

func (m *MockRoleRepo) ListAssignmentsForRole(ctx context.Context, roleID uuid.UUID, page api.PageParams) ([]AssignmentOut, int, error) {
	args := m.Called(ctx, roleID, page)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]AssignmentOut), args.Int(1), args.Error(2)
}

func TestCreateRole(t *testing.T) {
	ctx := context.Background()
	createdBy := uuid.New()

	t.Run("TitleIsLowercased", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("CreateRole", ctx, mock.MatchedBy(func(p CreateRoleParams) bool {
			return p.Title == "admin" && p.CreatedBy == createdBy
		})).Return(&api.Role{ID: uuid.New(), Title: "admin"}, nil).Once()

		role, err := service.CreateRole(ctx, createdBy, CreateRoleRequest{
			Title:       "  Admin ",
			Permissions: []string{api.UserScopeRead},
		})
		require.NoError(t, err)
		assert.Equal(t, "admin", role.Title)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateTitleDifferingOnlyInCase", func(t *testing.T) {
		// "Admin" normalizes to "admin", so the storage uniqueness
		// constraint fires and surfaces as a conflict.
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("CreateRole", ctx, mock.MatchedBy(func(p CreateRoleParams) bool {
			return p.Title == "admin"
		})).Return(nil, api.ErrConflict).Once()

		_, err := service.CreateRole(ctx, createdBy, CreateRoleRequest{Title: "Admin"})
		assert.ErrorIs(t, err, api.ErrConflict)
		mockRepo.AssertExpectations(t)
	})

	t.Run("EmptyTitle", func(t *testing.T) {
		service := NewRoleService(new(MockRoleRepo), slog.Default())
		_, err := service.CreateRole(ctx, createdBy, CreateRoleRequest{Title: "   "})
		assert.ErrorIs(t, err, api.ErrValidation)
	})

	t.Run("UnknownPermission", func(t *testing.T) {
		service := NewRoleService(new(MockRoleRepo), slog.Default())
		_, err := service.CreateRole(ctx, createdBy, CreateRoleRequest{
			Title:       "writers",
			Permissions: []string{"file:write"},
		})
		assert.ErrorIs(t, err, api.ErrValidation)
	})
}

func TestDeleteRole(t *testing.T) {
	ctx := context.Background()
	roleID := uuid.New()

	t.Run("ReturnsAssignmentCount", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("GetRole", ctx, roleID).
			Return(&api.Role{ID: roleID, Title: "temps", CanBeDeleted: true}, nil).Once()
		mockRepo.On("DeleteRole", ctx, roleID).Return(3, nil).Once()

		removed, err := service.DeleteRole(ctx, roleID)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)
		mockRepo.AssertExpectations(t)
	})

	t.Run("ProtectedRole", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("GetRole", ctx, roleID).
			Return(&api.Role{ID: roleID, Title: "admin", CanBeDeleted: false}, nil).Once()

		_, err := service.DeleteRole(ctx, roleID)
		assert.ErrorIs(t, err, api.ErrForbidden)
		mockRepo.AssertExpectations(t)
	})

	t.Run("UnknownRole", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("GetRole", ctx, roleID).Return(nil, api.ErrNotFound).Once()

		_, err := service.DeleteRole(ctx, roleID)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestAssignRole(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	roleID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("AssignRole", ctx, userID, roleID).
			Return(&api.UserRole{ID: uuid.New(), UserID: userID, RoleID: roleID}, nil).Once()

		assignment, err := service.AssignRole(ctx, userID, roleID)
		require.NoError(t, err)
		assert.Equal(t, userID, assignment.UserID)
		mockRepo.AssertExpectations(t)
	})

	t.Run("DuplicateAssignment", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("AssignRole", ctx, userID, roleID).Return(nil, api.ErrConflict).Once()

		_, err := service.AssignRole(ctx, userID, roleID)
		assert.ErrorIs(t, err, api.ErrConflict)
	})

	t.Run("UnassignUnknownPair", func(t *testing.T) {
		mockRepo := new(MockRoleRepo)
		service := NewRoleService(mockRepo, slog.Default())

		mockRepo.On("UnassignRole", ctx, userID, roleID).Return(api.ErrNotFound).Once()

		err := service.UnassignRole(ctx, userID, roleID)
		assert.ErrorIs(t, err, api.ErrNotFound)
	})
}

func TestListRolesDefaultsOrder(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockRoleRepo)
	service := NewRoleService(mockRepo, slog.Default())

	mockRepo.On("ListRoles", ctx, mock.MatchedBy(func(p ListRolesParams) bool {
		return p.Order == api.OrderAsc
	})).Return([]api.Role{}, 0, nil).Once()

	_, _, err := service.ListRoles(ctx, ListRolesParams{Order: "sideways"})
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}
