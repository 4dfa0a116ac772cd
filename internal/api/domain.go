package api

import (
	"time"

	"github.com/google/uuid"
)

// User is the credential-store record. AccessBegin/AccessEnd bound the window
// during which the account is usable; a nil AccessEnd means unbounded.
type User struct {
	ID                uuid.UUID  `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	IsActive          bool       `json:"is_active"`
	IsSuperAdmin      bool       `json:"is_super_admin"`
	FirstName         string     `json:"first_name"`
	LastName          string     `json:"last_name"`
	AvatarURL         string     `json:"avatar_url"`
	LastLogin         *time.Time `json:"last_login"`
	AccessBegin       time.Time  `json:"access_begin"`
	AccessEnd         *time.Time `json:"access_end"`
	LastPasswordToken string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Role carries an unordered set of permission scopes plus provenance.
type Role struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Permissions  []string   `json:"permissions"`
	CanBeDeleted bool       `json:"can_be_deleted"`
	CreatedBy    uuid.UUID  `json:"created_by"`
	ModifiedBy   *uuid.UUID `json:"modified_by"`
	DateCreated  time.Time  `json:"date_created"`
	DateModified *time.Time `json:"date_modified"`
}

// UserRole is one row of the assignment ledger. The (UserID, RoleID) pair is
// unique at the storage layer.
type UserRole struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	RoleID uuid.UUID `json:"role_id"`
	Role   *Role     `json:"role,omitempty"`
}

// UserWithRoles is the fully materialized aggregate the live scope re-check
// reads from. Repositories return it explicitly instead of relying on lazy
// relationship loading.
type UserWithRoles struct {
	User  User
	Roles []Role
}

// Scopes flattens the union of all assigned roles' permissions plus the
// implicit "me" scope.
func (u UserWithRoles) Scopes() []string {
	scopes := []string{ScopeMe}
	seen := map[string]struct{}{ScopeMe: {}}
	for _, role := range u.Roles {
		for _, p := range role.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			scopes = append(scopes, p)
		}
	}
	return scopes
}

// RoleRef is the token-embedded snapshot of an assigned role.
type RoleRef struct {
	Title string `json:"title"`
	ID    string `json:"id"`
}

type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// PageParams are the common pagination query params across list endpoints.
type PageParams struct {
	Skip  int
	Limit int
}

func (p PageParams) Normalize() PageParams {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 10
	}
	return p
}
