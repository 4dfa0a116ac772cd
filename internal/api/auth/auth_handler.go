package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/regnify/regnify-api/internal/api"
)

type AuthHandler struct {
	AuthService AuthService
	logger      *slog.Logger
}

func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		logger:      logger,
		AuthService: authService,
	}
}

// Login authenticates with the given credentials and returns a bearer token.
// Both a JSON body and an OAuth2-style form (username/password) are accepted.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var email, password string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, "invalid form body")
			return
		}
		email = r.PostFormValue("username")
		password = r.PostFormValue("password")
	} else {
		var req LoginRequest
		if err := api.DecodeJSONBody(w, r, &req); err != nil {
			api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
			return
		}
		email = req.Email
		password = req.Password
	}

	if email == "" || password == "" {
		api.ErrorResponse(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	token, _, err := h.AuthService.Login(r.Context(), email, password)
	if err != nil {
		if api.StatusForError(err) == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", "Bearer")
		}
		api.DomainErrorResponse(w, r, err)
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, AccessTokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
	})
}
