package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/auth"
	"github.com/regnify/regnify-api/internal/api/role"
	"github.com/regnify/regnify-api/internal/api/user"
)

// Config carries the handlers and middleware the router wires together.
// Server-wide middleware (request id, logging, recoverer) is applied in
// main.go before this router is mounted.
type Config struct {
	AuthHandler    *auth.AuthHandler
	UserHandler    *user.UserHandler
	RoleHandler    *role.RoleHandler
	AuthMiddleware *auth.Middleware
	MetricsHandler http.Handler
}

// SetupRouter builds the HTTP surface. Every protected route declares the
// scopes it needs right here, so the authorization rules are readable in one
// place.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", user.AdminSignupTokenHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Credential exchange.
	r.Post("/token", cfg.AuthHandler.Login)

	r.Route("/users", func(r chi.Router) {
		// Public account routes. Signup activation depends on the
		// Admin-Signup-Token header, not on being authenticated.
		r.Post("/", cfg.UserHandler.CreateUser)
		r.Post("/request-password-change", cfg.UserHandler.RequestPasswordReset)
		r.Post("/change-password", cfg.UserHandler.ChangePasswordWithToken)
		r.Post("/resend-invite", cfg.UserHandler.ResendInvite)

		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthMiddleware.Authenticate)

			r.Get("/token", cfg.UserHandler.WhoAmI)
			r.With(cfg.AuthMiddleware.RequireScopes(api.UserScopeRead)).
				Get("/list-scopes", cfg.UserHandler.ListSystemScopes)
			r.With(cfg.AuthMiddleware.RequireScopes(api.UserScopeRead)).
				Get("/", cfg.UserHandler.ListUsers)
			r.With(cfg.AuthMiddleware.RequireScopes(api.UserScopeRead)).
				Get("/{userID}", cfg.UserHandler.GetUser)
			r.With(cfg.AuthMiddleware.RequireScopes(api.UserScopeUpdate)).
				Put("/{userID}", cfg.UserHandler.UpdateUser)
			r.With(cfg.AuthMiddleware.RequireSuperAdmin).
				Put("/{userID}/password", cfg.UserHandler.AdminChangePassword)
		})
	})

	r.Route("/roles", func(r chi.Router) {
		r.Use(cfg.AuthMiddleware.Authenticate)

		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeCreate)).
			Post("/", cfg.RoleHandler.CreateRole)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeRead)).
			Get("/", cfg.RoleHandler.ListRoles)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeRead)).
			Get("/{roleID}", cfg.RoleHandler.GetRole)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeUpdate)).
			Put("/{roleID}", cfg.RoleHandler.UpdateRole)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeDelete)).
			Delete("/{roleID}", cfg.RoleHandler.DeleteRole)

		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeRead)).
			Get("/{roleID}/users", cfg.RoleHandler.ListAssignedUsers)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeUpdate)).
			Post("/{roleID}/users/{userID}", cfg.RoleHandler.AssignRole)
		r.With(cfg.AuthMiddleware.RequireScopes(api.RoleScopeUpdate)).
			Delete("/{roleID}/users/{userID}", cfg.RoleHandler.UnassignRole)
	})

	return r
}
