package role

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/regnify/regnify-api/internal/api"
)

var _ RoleService = (*RoleServiceImpl)(nil)

// RoleService applies registry policy on top of the repository: title
// normalization, permission validation against the scope catalog, and the
// can_be_deleted guard.
type RoleService interface {
	CreateRole(ctx context.Context, createdBy uuid.UUID, req CreateRoleRequest) (*api.Role, error)
	GetRole(ctx context.Context, roleID uuid.UUID) (*api.Role, error)
	UpdateRole(ctx context.Context, modifiedBy uuid.UUID, roleID uuid.UUID, req UpdateRoleRequest) (*api.Role, error)
	DeleteRole(ctx context.Context, roleID uuid.UUID) (int, error)
	ListRoles(ctx context.Context, params ListRolesParams) ([]api.Role, int, error)

	AssignRole(ctx context.Context, userID, roleID uuid.UUID) (*api.UserRole, error)
	UnassignRole(ctx context.Context, userID, roleID uuid.UUID) error
	ListAssignmentsForRole(ctx context.Context, roleID uuid.UUID, page api.PageParams) ([]AssignmentOut, int, error)
}

type RoleServiceImpl struct {
	repo   RoleRepo
	logger *slog.Logger
}

func NewRoleService(repo RoleRepo, logger *slog.Logger) *RoleServiceImpl {
	return &RoleServiceImpl{
		repo:   repo,
		logger: logger,
	}
}

// validatePermissions rejects scopes outside the platform catalog.
func validatePermissions(permissions []string) error {
	known := map[string]struct{}{}
	for _, family := range api.SystemScopes() {
		for _, scope := range family.Scopes {
			known[scope] = struct{}{}
		}
	}
	for _, p := range permissions {
		if _, ok := known[p]; !ok {
			return fmt.Errorf("%w: unknown permission scope %q", api.ErrValidation, p)
		}
	}
	return nil
}

// normalizeTitle lowercases the title so uniqueness is case-insensitive at
// the storage layer.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

func (s *RoleServiceImpl) CreateRole(ctx context.Context, createdBy uuid.UUID, req CreateRoleRequest) (*api.Role, error) {
	title := normalizeTitle(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: role title is required", api.ErrValidation)
	}
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}

	permissions := req.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	role, err := s.repo.CreateRole(ctx, CreateRoleParams{
		Title:       title,
		Permissions: permissions,
		CreatedBy:   createdBy,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Role created",
		slog.String("roleID", role.ID.String()),
		slog.String("title", role.Title),
	)
	return role, nil
}

func (s *RoleServiceImpl) GetRole(ctx context.Context, roleID uuid.UUID) (*api.Role, error) {
	return s.repo.GetRole(ctx, roleID)
}

func (s *RoleServiceImpl) UpdateRole(ctx context.Context, modifiedBy uuid.UUID, roleID uuid.UUID, req UpdateRoleRequest) (*api.Role, error) {
	params := UpdateRoleParams{ModifiedBy: modifiedBy, Permissions: req.Permissions}

	if req.Title != nil {
		title := normalizeTitle(*req.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: role title cannot be empty", api.ErrValidation)
		}
		params.Title = &title
	}
	if req.Permissions != nil {
		if err := validatePermissions(*req.Permissions); err != nil {
			return nil, err
		}
	}

	return s.repo.UpdateRole(ctx, roleID, params)
}

// DeleteRole removes the role and its assignments, returning the assignment
// count. Roles flagged can_be_deleted=false are protected.
func (s *RoleServiceImpl) DeleteRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return 0, err
	}
	if !role.CanBeDeleted {
		return 0, fmt.Errorf("%w: this role cannot be deleted", api.ErrForbidden)
	}

	removed, err := s.repo.DeleteRole(ctx, roleID)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Role deleted",
		slog.String("roleID", roleID.String()),
		slog.Int("assignments_removed", removed),
	)
	return removed, nil
}

func (s *RoleServiceImpl) ListRoles(ctx context.Context, params ListRolesParams) ([]api.Role, int, error) {
	if params.Order != api.OrderDesc {
		params.Order = api.OrderAsc
	}
	return s.repo.ListRoles(ctx, params)
}

func (s *RoleServiceImpl) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (*api.UserRole, error) {
	assignment, err := s.repo.AssignRole(ctx, userID, roleID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Role assigned",
		slog.String("userID", userID.String()),
		slog.String("roleID", roleID.String()),
	)
	return assignment, nil
}

func (s *RoleServiceImpl) UnassignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	if err := s.repo.UnassignRole(ctx, userID, roleID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Role unassigned",
		slog.String("userID", userID.String()),
		slog.String("roleID", roleID.String()),
	)
	return nil
}

func (s *RoleServiceImpl) ListAssignmentsForRole(ctx context.Context, roleID uuid.UUID, page api.PageParams) ([]AssignmentOut, int, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListAssignmentsForRole(ctx, roleID, page)
}
