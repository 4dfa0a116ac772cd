package api

// Permission scopes are strings of the form "<resource>:<action>", enumerated
// exhaustively per resource family.
const (
	UserScopeCreate = "user:create"
	UserScopeRead   = "user:read"
	UserScopeUpdate = "user:update"
	UserScopeDelete = "user:delete"

	RoleScopeCreate = "role:create"
	RoleScopeRead   = "role:read"
	RoleScopeUpdate = "role:update"
	RoleScopeDelete = "role:delete"

	ProfileScopeCreate = "profile:create"
	ProfileScopeRead   = "profile:read"
	ProfileScopeUpdate = "profile:update"
	ProfileScopeDelete = "profile:delete"

	// ScopeMe is implicitly granted to every authenticated active user and
	// denotes acting on one's own record.
	ScopeMe = "me"
)

func UserScopes() []string {
	return []string{UserScopeCreate, UserScopeRead, UserScopeUpdate, UserScopeDelete}
}

func RoleScopes() []string {
	return []string{RoleScopeCreate, RoleScopeRead, RoleScopeUpdate, RoleScopeDelete}
}

func ProfileScopes() []string {
	return []string{ProfileScopeCreate, ProfileScopeRead, ProfileScopeUpdate, ProfileScopeDelete}
}

// SystemScope groups the scopes of one resource family for the catalog
// endpoint.
type SystemScope struct {
	Title  string   `json:"title"`
	Scopes []string `json:"scopes"`
}

// SystemScopes returns the full scope catalog of the platform.
func SystemScopes() []SystemScope {
	return []SystemScope{
		{Title: "user", Scopes: UserScopes()},
		{Title: "role", Scopes: RoleScopes()},
		{Title: "profile", Scopes: ProfileScopes()},
	}
}
