package user

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/auth"
)

// AdminSignupTokenHeader carries the out-of-band secret that lets signup
// create an active, optionally super-admin account.
const AdminSignupTokenHeader = "Admin-Signup-Token"

type UserHandler struct {
	UserService UserService
	logger      *slog.Logger
}

func NewUserHandler(userService UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		logger:      logger,
		UserService: userService,
	}
}

func toUserOut(u *api.UserWithRoles) UserOut {
	roles := u.Roles
	if roles == nil {
		roles = []api.Role{}
	}
	return UserOut{User: u.User, Roles: roles}
}

func pageParamsFromQuery(r *http.Request) api.PageParams {
	var page api.PageParams
	if v, err := strconv.Atoi(r.URL.Query().Get("skip")); err == nil {
		page.Skip = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		page.Limit = v
	}
	return page.Normalize()
}

func userIDFromURL(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	return id, err == nil
}

// CreateUser handles POST /users.
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.UserService.CreateUser(r.Context(), req, r.Header.Get(AdminSignupTokenHeader))
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, toUserOut(created))
}

// ListUsers handles GET /users.
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, total, err := h.UserService.ListUsers(r.Context(), pageParamsFromQuery(r))
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	if users == nil {
		users = []api.User{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ManyUsersOut{Total: total, Data: users})
}

// GetUser handles GET /users/{userID}.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromURL(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.UserService.GetUser(r.Context(), userID)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, toUserOut(user))
}

// UpdateUser handles PUT /users/{userID}.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromURL(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	var req UpdateUserRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	requester, _ := auth.UserFromContext(r.Context())
	updated, err := h.UserService.UpdateUser(r.Context(), requester, userID, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, toUserOut(updated))
}

// WhoAmI handles GET /users/token: the account behind the presented token.
func (h *UserHandler) WhoAmI(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid authentication credentials")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, toUserOut(user))
}

// AdminChangePassword handles PUT /users/{userID}/password. The route is
// restricted to super-admins.
func (h *UserHandler) AdminChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromURL(r)
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid user id")
		return
	}

	var req ChangePasswordRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.UserService.AdminSetPassword(r.Context(), userID, req.Password); err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"detail": "Password changed."})
}

// RequestPasswordReset handles POST /users/request-password-change. The
// response is the same whether or not the email is registered.
func (h *UserHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.UserService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{
		"detail": "If the email address is registered, a reset message has been sent.",
	})
}

// ChangePasswordWithToken handles POST /users/change-password.
func (h *UserHandler) ChangePasswordWithToken(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordWithTokenRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.UserService.ChangePasswordWithToken(r.Context(), req.Token, req.NewPassword); err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"detail": "Password changed."})
}

// ResendInvite handles POST /users/resend-invite with the same generic
// response as the reset request.
func (h *UserHandler) ResendInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.UserService.ResendInvite(r.Context(), req.Email); err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{
		"detail": "If the email address is registered, an invite has been sent.",
	})
}

// ListSystemScopes handles GET /users/list-scopes.
func (h *UserHandler) ListSystemScopes(w http.ResponseWriter, r *http.Request) {
	api.WriteJSONResponse(w, r, http.StatusOK, ManySystemScopesOut{Scopes: h.UserService.SystemScopes()})
}
