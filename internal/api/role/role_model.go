package role

import (
	"github.com/google/uuid"

	"github.com/regnify/regnify-api/internal/api"
)

type CreateRoleRequest struct {
	Title       string   `json:"title"`
	Permissions []string `json:"permissions"`
}

// UpdateRoleRequest is a partial update; nil fields are left unchanged. A
// non-nil empty Permissions slice clears the role's permissions.
type UpdateRoleRequest struct {
	Title       *string   `json:"title"`
	Permissions *[]string `json:"permissions"`
}

// ManyRolesOut is one page of roles plus the filter-wide total.
type ManyRolesOut struct {
	Total int        `json:"total"`
	Data  []api.Role `json:"data"`
}

// DeleteRoleOut reports how many assignments the cascade removed.
type DeleteRoleOut struct {
	AssignmentsRemoved int `json:"assignments_removed"`
}

// AssignmentOut is one assignment-ledger row joined with the assigned user.
type AssignmentOut struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	RoleID uuid.UUID `json:"role_id"`
	User   api.User  `json:"user"`
}

type ManyAssignmentsOut struct {
	Total int             `json:"total"`
	Data  []AssignmentOut `json:"data"`
}

// ListRolesParams filters and orders the registry listing. TitleFilter is a
// case-insensitive substring match; empty matches everything.
type ListRolesParams struct {
	TitleFilter string
	Order       api.OrderDirection
	Page        api.PageParams
}

// CreateRoleParams is the storage-boundary shape after the service has
// normalized the title and validated the permissions.
type CreateRoleParams struct {
	Title       string
	Permissions []string
	CreatedBy   uuid.UUID
}

type UpdateRoleParams struct {
	Title       *string
	Permissions *[]string
	ModifiedBy  uuid.UUID
}
