package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/role"
	"github.com/regnify/regnify-api/internal/api/user"
)

// EnsureAdminUser seeds the configured super-admin account on startup. It is
// idempotent: an existing account is left untouched, including its password.
func EnsureAdminUser(ctx context.Context, repo user.UserRepo, cfg config.AdminConfig, logger *slog.Logger) error {
	if cfg.Email == "" {
		logger.WarnContext(ctx, "No admin email configured, skipping admin bootstrap")
		return nil
	}

	existing, err := repo.GetUserByEmail(ctx, cfg.Email)
	if err == nil {
		logger.InfoContext(ctx, "Admin user already present", slog.String("userID", existing.ID.String()))
		return nil
	}
	if !errors.Is(err, api.ErrNotFound) {
		return fmt.Errorf("failed to look up admin user: %w", err)
	}

	if cfg.Password == "" {
		return errors.New("admin user is missing and no admin password is configured")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	created, err := repo.CreateUser(ctx, user.CreateUserParams{
		Email:        cfg.Email,
		PasswordHash: string(hash),
		FirstName:    cfg.FirstName,
		LastName:     cfg.LastName,
		AvatarURL:    user.DefaultAvatarURL(cfg.FirstName, cfg.LastName),
		IsActive:     true,
		IsSuperAdmin: true,
		AccessBegin:  time.Now(),
	})
	if err != nil {
		// A concurrent replica may have won the race; that still counts
		// as done.
		if errors.Is(err, api.ErrConflict) {
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.InfoContext(ctx, "Admin user created", slog.String("userID", created.ID.String()))
	return nil
}

// EnsureDefaultRoles seeds the users-management and roles-management roles,
// owned by the admin account. Conflicts mean an earlier start already seeded
// them.
func EnsureDefaultRoles(ctx context.Context, users user.UserRepo, roles role.RoleRepo, cfg config.AdminConfig, logger *slog.Logger) error {
	if cfg.Email == "" {
		return nil
	}

	admin, err := users.GetUserByEmail(ctx, cfg.Email)
	if err != nil {
		return fmt.Errorf("failed to look up admin user for default roles: %w", err)
	}

	defaults := []role.CreateRoleParams{
		{Title: "users management", Permissions: api.UserScopes(), CreatedBy: admin.ID},
		{Title: "roles management", Permissions: api.RoleScopes(), CreatedBy: admin.ID},
	}
	for _, params := range defaults {
		if _, err := roles.CreateRole(ctx, params); err != nil {
			if errors.Is(err, api.ErrConflict) {
				continue
			}
			return fmt.Errorf("failed to seed role %q: %w", params.Title, err)
		}
		logger.InfoContext(ctx, "Default role created", slog.String("title", params.Title))
	}
	return nil
}
