package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/regnify/regnify-api/internal/api"
)

var _ UserRepo = (*PostgresUserRepo)(nil)

// UserRepo defines the contract for credential-store persistence. Lookups
// return api.ErrNotFound when no row exists; uniqueness violations surface as
// api.ErrConflict, never as raw storage errors.
type UserRepo interface {
	GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error)
	GetUserByEmail(ctx context.Context, email string) (*api.User, error)

	// GetUserWithRoles returns the fully materialized user aggregate the
	// live scope re-check reads from.
	GetUserWithRoles(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error)
	GetUserWithRolesByEmail(ctx context.Context, email string) (*api.UserWithRoles, error)

	CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (*api.User, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetLastResetToken(ctx context.Context, userID uuid.UUID, token string) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error

	ListUsers(ctx context.Context, page api.PageParams) ([]api.User, int, error)
}

const userColumns = `id, email, password_hash, is_active, is_super_admin,
       first_name, last_name, avatar_url, last_login, access_begin,
       access_end, last_password_reset_token, created_at, updated_at`

// PGXPool is the slice of pgxpool.Pool the repository uses.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresUserRepo(pgpool PGXPool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func scanUser(row pgx.Row) (*api.User, error) {
	var u api.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperAdmin,
		&u.FirstName, &u.LastName, &u.AvatarURL, &u.LastLogin, &u.AccessBegin,
		&u.AccessEnd, &u.LastPasswordToken, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*api.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	return scanUser(r.pgpool.QueryRow(ctx, query, userID))
}

func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (*api.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	return scanUser(r.pgpool.QueryRow(ctx, query, email))
}

func (r *PostgresUserRepo) GetUserWithRoles(ctx context.Context, userID uuid.UUID) (*api.UserWithRoles, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.attachRoles(ctx, user)
}

func (r *PostgresUserRepo) GetUserWithRolesByEmail(ctx context.Context, email string) (*api.UserWithRoles, error) {
	user, err := r.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return r.attachRoles(ctx, user)
}

func (r *PostgresUserRepo) attachRoles(ctx context.Context, user *api.User) (*api.UserWithRoles, error) {
	rows, err := r.pgpool.Query(ctx, `
		SELECT r.id, r.title, r.permissions, r.can_be_deleted, r.created_by,
		       r.modified_by, r.date_created, r.date_modified
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user roles: %w", err)
	}
	defer rows.Close()

	var roles []api.Role
	for rows.Next() {
		var role api.Role
		err := rows.Scan(
			&role.ID, &role.Title, &role.Permissions, &role.CanBeDeleted,
			&role.CreatedBy, &role.ModifiedBy, &role.DateCreated, &role.DateModified,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading user roles: %w", err)
	}

	return &api.UserWithRoles{User: *user, Roles: roles}, nil
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, params CreateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "CreateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	query := fmt.Sprintf(`
		INSERT INTO users (email, password_hash, is_active, is_super_admin,
		                   first_name, last_name, avatar_url, access_begin, access_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING %s`, userColumns)

	user, err := scanUser(r.pgpool.QueryRow(ctx, query,
		params.Email, params.PasswordHash, params.IsActive, params.IsSuperAdmin,
		params.FirstName, params.LastName, params.AvatarURL, params.AccessBegin, params.AccessEnd,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a user with that email address already exists", api.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdateUser(ctx context.Context, userID uuid.UUID, params UpdateUserParams) (*api.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateUser", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	var setClauses []string
	var args []interface{}
	argID := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if params.IsActive != nil {
		addClause("is_active", *params.IsActive)
	}
	if params.IsSuperAdmin != nil {
		addClause("is_super_admin", *params.IsSuperAdmin)
	}
	if params.FirstName != nil {
		addClause("first_name", *params.FirstName)
	}
	if params.LastName != nil {
		addClause("last_name", *params.LastName)
	}
	if params.AccessBegin != nil {
		addClause("access_begin", *params.AccessBegin)
	}
	if params.AccessEnd != nil {
		addClause("access_end", *params.AccessEnd)
	}

	if len(setClauses) == 0 {
		return r.GetUserByID(ctx, userID)
	}

	addClause("updated_at", time.Now())
	args = append(args, userID)

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, userColumns)

	user, err := scanUser(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: access_begin must be less than access_end", api.ErrValidation)
		}
		return nil, err
	}
	return user, nil
}

func (r *PostgresUserRepo) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3",
		passwordHash, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) SetLastResetToken(ctx context.Context, userID uuid.UUID, token string) error {
	tag, err := r.pgpool.Exec(ctx,
		"UPDATE users SET last_password_reset_token = $1, updated_at = $2 WHERE id = $3",
		token, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresUserRepo) UpdateLastLogin(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pgpool.Exec(ctx,
		"UPDATE users SET last_login = $1 WHERE id = $2",
		time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) ListUsers(ctx context.Context, page api.PageParams) ([]api.User, int, error) {
	page = page.Normalize()

	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at ASC OFFSET $1 LIMIT $2", userColumns)
	rows, err := r.pgpool.Query(ctx, query, page.Skip, page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []api.User
	for rows.Next() {
		var u api.User
		err := rows.Scan(
			&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperAdmin,
			&u.FirstName, &u.LastName, &u.AvatarURL, &u.LastLogin, &u.AccessBegin,
			&u.AccessEnd, &u.LastPasswordToken, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed reading users: %w", err)
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	return users, total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23514"
}
