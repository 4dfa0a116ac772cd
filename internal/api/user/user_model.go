package user

import (
	"fmt"
	"time"

	"github.com/regnify/regnify-api/internal/api"
)

// CreateUserRequest is the payload for creating an account. The requested
// super-admin flag is only honored together with the correct admin signup
// token (see UserService.CreateUser).
type CreateUserRequest struct {
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Password     string     `json:"password"`
	IsSuperAdmin bool       `json:"is_super_admin"`
	AccessBegin  *time.Time `json:"access_begin"`
	AccessEnd    *time.Time `json:"access_end"`
}

// UpdateUserRequest is a partial update; nil fields are left unchanged.
// IsActive and IsSuperAdmin are privileged fields.
type UpdateUserRequest struct {
	IsActive     *bool      `json:"is_active"`
	IsSuperAdmin *bool      `json:"is_super_admin"`
	FirstName    *string    `json:"first_name"`
	LastName     *string    `json:"last_name"`
	AccessBegin  *time.Time `json:"access_begin"`
	AccessEnd    *time.Time `json:"access_end"`
}

// ChangePasswordRequest is the admin-set-password payload.
type ChangePasswordRequest struct {
	Password string `json:"password"`
}

// ChangePasswordWithTokenRequest redeems a password-reset token.
type ChangePasswordWithTokenRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// UserOut is the public shape of an account, including its assigned roles.
type UserOut struct {
	api.User
	Roles []api.Role `json:"roles"`
}

// ManyUsersOut is one page of users plus the page-independent total.
type ManyUsersOut struct {
	Total int       `json:"total"`
	Data  []api.User `json:"data"`
}

// ManySystemScopesOut lists the platform's scope catalog.
type ManySystemScopesOut struct {
	Scopes []api.SystemScope `json:"scopes"`
}

// CreateUserParams is what the repository persists after the service has
// applied the activation policy and hashed the password.
type CreateUserParams struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	AvatarURL    string
	IsActive     bool
	IsSuperAdmin bool
	AccessBegin  time.Time
	AccessEnd    *time.Time
}

// UpdateUserParams mirrors UpdateUserRequest at the storage boundary.
type UpdateUserParams struct {
	IsActive     *bool
	IsSuperAdmin *bool
	FirstName    *string
	LastName     *string
	AccessBegin  *time.Time
	AccessEnd    *time.Time
}

// DefaultAvatarURL builds the generated-avatar URL used when no photo has
// been attached yet.
func DefaultAvatarURL(firstName, lastName string) string {
	return fmt.Sprintf("https://ui-avatars.com/api/?name=%s+%s&size=300", lastName, firstName)
}
