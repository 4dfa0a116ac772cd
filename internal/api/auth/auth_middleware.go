package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/regnify/regnify-api/app/observability/metrics"
	"github.com/regnify/regnify-api/internal/api"
)

// Typed context keys for the authenticated identity.
type contextKey string

const (
	claimsKey contextKey = "authClaims"
	userKey   contextKey = "authUser"
)

// Middleware authenticates bearer tokens and enforces per-route scopes.
// Authenticate loads the live user+roles aggregate once per request; the
// scope check then runs against both the token snapshot and that live set.
type Middleware struct {
	logger  *slog.Logger
	tokens  *TokenService
	users   UserSource
	metrics *metrics.AppMetrics
}

func NewMiddleware(logger *slog.Logger, tokens *TokenService, users UserSource, m *metrics.AppMetrics) *Middleware {
	return &Middleware{
		logger:  logger,
		tokens:  tokens,
		users:   users,
		metrics: m,
	}
}

// Authenticate validates the bearer token, re-loads the account from storage
// and applies the access-window gate against that live state. A deactivated
// account or an elapsed window is rejected here even when the token itself is
// still unexpired.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		l := m.logger.With(slog.String("middleware", "Authenticate"))

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, r, "Authorization header required")
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || strings.ToLower(headerParts[0]) != "bearer" {
			unauthorized(w, r, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := m.tokens.VerifyAccessToken(headerParts[1])
		if err != nil {
			l.WarnContext(ctx, "Token verification failed", slog.Any("error", err))
			unauthorized(w, r, "Invalid authentication credentials")
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			l.WarnContext(ctx, "Token subject is not a valid user id", slog.String("sub", claims.Subject))
			unauthorized(w, r, "Invalid authentication credentials")
			return
		}

		user, err := m.users.GetUserWithRoles(ctx, userID)
		if err != nil {
			if errors.Is(err, api.ErrNotFound) {
				unauthorized(w, r, "Invalid authentication credentials")
				return
			}
			l.ErrorContext(ctx, "Failed to load user for authentication", slog.Any("error", err))
			api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		if !IsUsable(user.User, time.Now()) {
			l.WarnContext(ctx, "Account not usable", slog.String("userID", userID.String()))
			api.ErrorResponse(w, r, api.StatusForError(api.ErrAccountInactive), "Inactive user")
			return
		}

		ctx = context.WithValue(ctx, claimsKey, claims)
		ctx = context.WithValue(ctx, userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScopes declares the scopes a route needs. Runs AFTER Authenticate.
func (m *Middleware) RequireScopes(scopes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claims, claimsOK := ClaimsFromContext(ctx)
			user, userOK := UserFromContext(ctx)
			if !claimsOK || !userOK {
				m.logger.ErrorContext(ctx, "RequireScopes ran without Authenticate")
				api.ErrorResponse(w, r, http.StatusInternalServerError, "Internal Server Error")
				return
			}

			if err := Authorize(claims, scopes, user.Scopes()); err != nil {
				if m.metrics != nil {
					m.metrics.AuthzDenialsTotal.Add(ctx, 1)
				}
				var authzErr *AuthzError
				if errors.As(err, &authzErr) {
					w.Header().Set("WWW-Authenticate", authzErr.Challenge())
				}
				m.logger.WarnContext(ctx, "Scope resolution denied request",
					slog.String("userID", user.User.ID.String()),
					slog.Any("required_scopes", scopes),
				)
				api.ErrorResponse(w, r, http.StatusForbidden, "Not enough permissions.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin guards routes only a super-admin may call.
func (m *Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.User.IsSuperAdmin {
			api.ErrorResponse(w, r, http.StatusForbidden, "You are not allowed to perform this action.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	api.ErrorResponse(w, r, http.StatusUnauthorized, message)
}

// ClaimsFromContext returns the verified token claims set by Authenticate.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// UserFromContext returns the live user aggregate set by Authenticate.
func UserFromContext(ctx context.Context) (*api.UserWithRoles, bool) {
	user, ok := ctx.Value(userKey).(*api.UserWithRoles)
	return user, ok
}

// ContextWithUser is a test helper seam for handlers that read the
// authenticated identity.
func ContextWithUser(ctx context.Context, claims *Claims, user *api.UserWithRoles) context.Context {
	ctx = context.WithValue(ctx, claimsKey, claims)
	return context.WithValue(ctx, userKey, user)
}
