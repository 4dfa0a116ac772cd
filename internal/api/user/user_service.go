package user

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/regnify/regnify-api/config"
	"github.com/regnify/regnify-api/internal/api"
	"github.com/regnify/regnify-api/internal/api/auth"
	appmail "github.com/regnify/regnify-api/internal/mail"
)

const minPasswordLength = 8

var _ UserService = (*UserServiceImpl)(nil)

// UserService owns the account lifecycle: signup with the activation policy,
// partial updates with privileged-field protection, and both password-change
// flows.
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest, adminSignupToken string) (*api.UserWithRoles, error)
	UpdateUser(ctx context.Context, requester *api.UserWithRoles, userID uuid.UUID, req UpdateUserRequest) (*api.UserWithRoles, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error)
	ListUsers(ctx context.Context, page api.PageParams) ([]api.User, int, error)

	AdminSetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error
	RequestPasswordReset(ctx context.Context, email string) error
	ChangePasswordWithToken(ctx context.Context, token, newPassword string) error
	ResendInvite(ctx context.Context, email string) error

	SystemScopes() []api.SystemScope
}

type UserServiceImpl struct {
	repo     UserRepo
	tokens   *auth.TokenService
	mailer   appmail.Mailer
	adminCfg config.AdminConfig
	logger   *slog.Logger
}

func NewUserService(repo UserRepo, tokens *auth.TokenService, mailer appmail.Mailer, adminCfg config.AdminConfig, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		adminCfg: adminCfg,
		logger:   logger,
	}
}

// CreateUser registers an account. Presenting the configured admin signup
// token makes the account immediately active and allows the super-admin flag
// through; without it the account is created inactive and the flag is forced
// off, whatever the request asked for.
func (s *UserServiceImpl) CreateUser(ctx context.Context, req CreateUserRequest, adminSignupToken string) (*api.UserWithRoles, error) {
	l := s.logger.With(slog.String("method", "CreateUser"))

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email address is required", api.ErrValidation)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", api.ErrValidation, minPasswordLength)
	}

	// A supplied access_begin must come with a bound: an explicit begin
	// with an unbounded end would quietly grant indefinite access.
	accessBegin := time.Now()
	if req.AccessBegin != nil {
		if req.AccessEnd == nil {
			return nil, fmt.Errorf("%w: access_end must be provided when access_begin is set", api.ErrValidation)
		}
		accessBegin = *req.AccessBegin
	}
	if req.AccessEnd != nil && !accessBegin.Before(*req.AccessEnd) {
		return nil, fmt.Errorf("%w: access_begin must be before access_end", api.ErrValidation)
	}

	adminSignup := s.adminCfg.SignupToken != "" &&
		subtle.ConstantTimeCompare([]byte(adminSignupToken), []byte(s.adminCfg.SignupToken)) == 1

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	params := CreateUserParams{
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		AvatarURL:    DefaultAvatarURL(req.FirstName, req.LastName),
		IsActive:     adminSignup,
		IsSuperAdmin: adminSignup && req.IsSuperAdmin,
		AccessBegin:  accessBegin,
		AccessEnd:    req.AccessEnd,
	}

	created, err := s.repo.CreateUser(ctx, params)
	if err != nil {
		return nil, err
	}

	if !adminSignup {
		s.sendMail(ctx, "new-account", func(ctx context.Context) error {
			return s.mailer.SendNewAccountEmail(ctx, created.Email, req.Password, created.FirstName)
		})
	}

	l.InfoContext(ctx, "User created",
		slog.String("userID", created.ID.String()),
		slog.Bool("is_active", created.IsActive),
		slog.Bool("is_super_admin", created.IsSuperAdmin),
	)
	return &api.UserWithRoles{User: *created}, nil
}

// UpdateUser applies a partial update. The is_active and is_super_admin fields
// may only be changed by a super-admin.
func (s *UserServiceImpl) UpdateUser(ctx context.Context, requester *api.UserWithRoles, userID uuid.UUID, req UpdateUserRequest) (*api.UserWithRoles, error) {
	if req.IsActive != nil || req.IsSuperAdmin != nil {
		if requester == nil || !requester.User.IsSuperAdmin {
			return nil, fmt.Errorf("%w: only a super admin can change account status", api.ErrForbidden)
		}
	}

	if req.AccessBegin != nil && req.AccessEnd != nil && !req.AccessBegin.Before(*req.AccessEnd) {
		return nil, fmt.Errorf("%w: access_begin must be before access_end", api.ErrValidation)
	}

	updated, err := s.repo.UpdateUser(ctx, userID, UpdateUserParams{
		IsActive:     req.IsActive,
		IsSuperAdmin: req.IsSuperAdmin,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		AccessBegin:  req.AccessBegin,
		AccessEnd:    req.AccessEnd,
	})
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserWithRoles(ctx, updated.ID)
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error) {
	return s.repo.GetUserWithRoles(ctx, userID)
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, page api.PageParams) ([]api.User, int, error) {
	return s.repo.ListUsers(ctx, page)
}

// AdminSetPassword replaces a user's password without a reset token. The
// route guarding this is super-admin only.
func (s *UserServiceImpl) AdminSetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", api.ErrValidation, minPasswordLength)
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}

	s.sendMail(ctx, "password-changed", func(ctx context.Context) error {
		return s.mailer.SendPasswordChangedEmail(ctx, user.Email)
	})
	return nil
}

// RequestPasswordReset always reports success to the caller. When the account
// exists, a single-use reset token is minted, recorded as the account's
// current reset token and mailed out.
func (s *UserServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	l := s.logger.With(slog.String("method", "RequestPasswordReset"))

	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			// Indistinguishable from the account-exists path.
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := s.tokens.IssueResetToken(user.ID)
	if err != nil {
		return err
	}
	if err := s.repo.SetLastResetToken(ctx, user.ID, token); err != nil {
		return err
	}

	s.sendMail(ctx, "password-reset", func(ctx context.Context) error {
		return s.mailer.SendPasswordResetEmail(ctx, user.Email, token)
	})

	l.InfoContext(ctx, "Password reset requested", slog.String("userID", user.ID.String()))
	return nil
}

// ChangePasswordWithToken redeems a reset token. The token must verify under
// the reset signing context, be unexpired, and match the account's stored
// reset token exactly; redemption clears the stored token so a second attempt
// fails.
func (s *UserServiceImpl) ChangePasswordWithToken(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", api.ErrValidation, minPasswordLength)
	}

	userID, err := s.tokens.VerifyResetToken(token)
	if err != nil {
		return err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return fmt.Errorf("%w: there is something wrong with the token", api.ErrUnauthenticated)
		}
		return err
	}

	if user.LastPasswordToken == "" || subtle.ConstantTimeCompare([]byte(user.LastPasswordToken), []byte(token)) != 1 {
		return fmt.Errorf("%w: the token has been used or replaced, please generate a new one", api.ErrUnauthenticated)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, user.ID, string(hash)); err != nil {
		return err
	}
	if err := s.repo.SetLastResetToken(ctx, user.ID, ""); err != nil {
		return err
	}

	s.sendMail(ctx, "password-changed", func(ctx context.Context) error {
		return s.mailer.SendPasswordChangedEmail(ctx, user.Email)
	})
	return nil
}

// ResendInvite re-sends the getting-started email. Like the reset request it
// reports success whether or not the account exists.
func (s *UserServiceImpl) ResendInvite(ctx context.Context, email string) error {
	user, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, api.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	s.sendMail(ctx, "how-to-change-password", func(ctx context.Context) error {
		return s.mailer.SendHowToChangePasswordEmail(ctx, user.Email)
	})
	return nil
}

// SystemScopes returns the platform scope catalog.
func (s *UserServiceImpl) SystemScopes() []api.SystemScope {
	return api.SystemScopes()
}

// sendMail delivers asynchronously; a mail failure never fails the request
// that triggered it.
func (s *UserServiceImpl) sendMail(ctx context.Context, kind string, send func(ctx context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := send(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send email",
				slog.String("kind", kind), slog.Any("error", err))
		}
	}()
}
