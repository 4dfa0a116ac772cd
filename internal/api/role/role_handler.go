package role

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/auth"
)

type RoleHandler struct {
	RoleService RoleService
	logger      *slog.Logger
}

func NewRoleHandler(roleService RoleService, logger *slog.Logger) *RoleHandler {
	return &RoleHandler{
		logger:      logger,
		RoleService: roleService,
	}
}

func uuidFromURL(r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	return id, err == nil
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

// CreateRole handles POST /roles.
func (h *RoleHandler) CreateRole(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid authentication credentials")
		return
	}

	var req CreateRoleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.RoleService.CreateRole(r.Context(), requester.User.ID, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, role)
}

// ListRoles handles GET /roles with title filter, ordering and pagination.
func (h *RoleHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	params := ListRolesParams{
		TitleFilter: r.URL.Query().Get("title"),
		Order:       api.OrderDirection(r.URL.Query().Get("order")),
		Page:        pageParamsFromQuery(r),
	}

	roles, total, err := h.RoleService.ListRoles(r.Context(), params)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	if roles == nil {
		roles = []api.Role{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ManyRolesOut{Total: total, Data: roles})
}

// GetRole handles GET /roles/{roleID}.
func (h *RoleHandler) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidFromURL(r, "roleID")
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	role, err := h.RoleService.GetRole(r.Context(), roleID)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, role)
}

// UpdateRole handles PUT /roles/{roleID}.
func (h *RoleHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	requester, ok := auth.UserFromContext(r.Context())
	if !ok {
		api.ErrorResponse(w, r, http.StatusUnauthorized, "Invalid authentication credentials")
		return
	}

	roleID, ok := uuidFromURL(r, "roleID")
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	var req UpdateRoleRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	role, err := h.RoleService.UpdateRole(r.Context(), requester.User.ID, roleID, req)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, role)
}

// DeleteRole handles DELETE /roles/{roleID}.
func (h *RoleHandler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidFromURL(r, "roleID")
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	removed, err := h.RoleService.DeleteRole(r.Context(), roleID)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, DeleteRoleOut{AssignmentsRemoved: removed})
}

// AssignRole handles POST /roles/{roleID}/users/{userID}.
func (h *RoleHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	roleID, okRole := uuidFromURL(r, "roleID")
	userID, okUser := uuidFromURL(r, "userID")
	if !okRole || !okUser {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role or user id")
		return
	}

	assignment, err := h.RoleService.AssignRole(r.Context(), userID, roleID)
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, assignment)
}

// UnassignRole handles DELETE /roles/{roleID}/users/{userID}.
func (h *RoleHandler) UnassignRole(w http.ResponseWriter, r *http.Request) {
	roleID, okRole := uuidFromURL(r, "roleID")
	userID, okUser := uuidFromURL(r, "userID")
	if !okRole || !okUser {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role or user id")
		return
	}

	if err := h.RoleService.UnassignRole(r.Context(), userID, roleID); err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]string{"detail": "Role unassigned."})
}

// ListAssignedUsers handles GET /roles/{roleID}/users.
func (h *RoleHandler) ListAssignedUsers(w http.ResponseWriter, r *http.Request) {
	roleID, ok := uuidFromURL(r, "roleID")
	if !ok {
		api.ErrorResponse(w, r, http.StatusBadRequest, "invalid role id")
		return
	}

	assignments, total, err := h.RoleService.ListAssignmentsForRole(r.Context(), roleID, pageParamsFromQuery(r))
	if err != nil {
		api.DomainErrorResponse(w, r, err)
		return
	}
	if assignments == nil {
		assignments = []AssignmentOut{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, ManyAssignmentsOut{Total: total, Data: assignments})
}
