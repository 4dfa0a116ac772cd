package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/regnify/regnify-api/app/observability/metrics"
	"github.com/regnify/regnify-api/internal/api"
)

// UserSource is the slice of the credential store the auth layer needs: live
// user+role aggregates for the login exchange and the per-request re-check.
type UserSource interface {
	GetUserWithRoles(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error)
	GetUserWithRolesByEmail(ctx context.Context, email string) (*api.UserWithRoles, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
}

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	// Login exchanges credentials for a signed bearer token whose claims
	// freeze the user's scope set at issuance time.
	Login(ctx context.Context, email, password string) (string, *api.UserWithRoles, error)
}

type AuthServiceImpl struct {
	users   UserSource
	tokens  *TokenService
	logger  *slog.Logger
	metrics *metrics.AppMetrics
}

func NewAuthService(users UserSource, tokens *TokenService, logger *slog.Logger, m *metrics.AppMetrics) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:   users,
		tokens:  tokens,
		logger:  logger,
		metrics: m,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (string, *api.UserWithRoles, error) {
	l := s.logger.With(slog.String("method", "Login"))
	if s.metrics != nil {
		s.metrics.LoginAttemptsTotal.Add(ctx, 1)
	}

	// Accounts are stored with lowercased emails; match that here so the
	// casing used at signup keeps working.
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserWithRolesByEmail(ctx, email)
	if err != nil {
		if s.metrics != nil {
			s.metrics.LoginFailuresTotal.Add(ctx, 1)
		}
		if errors.Is(err, api.ErrNotFound) {
			// Same outcome as a wrong password, so callers cannot tell
			// which emails are registered.
			return "", nil, api.ErrUnauthenticated
		}
		return "", nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.User.PasswordHash), []byte(password)); err != nil {
		if s.metrics != nil {
			s.metrics.LoginFailuresTotal.Add(ctx, 1)
		}
		return "", nil, api.ErrUnauthenticated
	}

	if !IsUsable(user.User, time.Now()) {
		if s.metrics != nil {
			s.metrics.LoginFailuresTotal.Add(ctx, 1)
		}
		return "", nil, api.ErrAccountInactive
	}

	if err := s.users.UpdateLastLogin(ctx, user.User.ID); err != nil {
		l.WarnContext(ctx, "Failed to record last login", slog.Any("error", err))
	}

	token, err := s.tokens.IssueAccessToken(*user)
	if err != nil {
		return "", nil, err
	}
	if s.metrics != nil {
		s.metrics.TokensIssuedTotal.Add(ctx, 1)
	}
	return token, user, nil
}
