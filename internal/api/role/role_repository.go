package role

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

var _ RoleRepo = (*PostgresRoleRepo)(nil)

// RoleRepo is the registry plus the assignment ledger. Title uniqueness and
// the (user_id, role_id) uniqueness are enforced by the storage layer and
// surface as api.ErrConflict.
type RoleRepo interface {
	CreateRole(ctx context.Context, params CreateRoleParams) (*api.Role, error)
	GetRole(ctx context.Context, roleID uuid.UUID) (*api.Role, error)
	UpdateRole(ctx context.Context, roleID uuid.UUID, params UpdateRoleParams) (*api.Role, error)

	// DeleteRole removes the role and all of its assignments in one
	// transaction and returns the number of assignments removed.
	DeleteRole(ctx context.Context, roleID uuid.UUID) (int, error)

	ListRoles(ctx context.Context, params ListRolesParams) ([]api.Role, int, error)

	AssignRole(ctx context.Context, userID, roleID uuid.UUID) (*api.UserRole, error)
	UnassignRole(ctx context.Context, userID, roleID uuid.UUID) error
	ListAssignmentsForRole(ctx context.Context, roleID uuid.UUID, page api.PageParams) ([]AssignmentOut, int, error)
}

const roleColumns = `id, title, permissions, can_be_deleted, created_by,
       modified_by, date_created, date_modified`

// PGXPool is the slice of pgxpool.Pool the repository uses. DeleteRole needs
// a transaction, so Begin is included here.
type PGXPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresRoleRepo struct {
	logger *slog.Logger
	pgpool PGXPool
}

func NewPostgresRoleRepo(pgpool PGXPool, logger *slog.Logger) *PostgresRoleRepo {
	return &PostgresRoleRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func scanRole(row pgx.Row) (*api.Role, error) {
	var role api.Role
	err := row.Scan(
		&role.ID, &role.Title, &role.Permissions, &role.CanBeDeleted,
		&role.CreatedBy, &role.ModifiedBy, &role.DateCreated, &role.DateModified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, api.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	return &role, nil
}

func (r *PostgresRoleRepo) CreateRole(ctx context.Context, params CreateRoleParams) (*api.Role, error) {
	ctx, span := otel.Tracer("RoleRepo").Start(ctx, "CreateRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "roles"),
	))
	defer span.End()

	query := fmt.Sprintf(`
		INSERT INTO roles (title, permissions, created_by)
		VALUES ($1, $2, $3)
		RETURNING %s`, roleColumns)

	role, err := scanRole(r.pgpool.QueryRow(ctx, query, params.Title, params.Permissions, params.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a role with that title already exists", api.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert role: %w", err)
	}
	return role, nil
}

func (r *PostgresRoleRepo) GetRole(ctx context.Context, roleID uuid.UUID) (*api.Role, error) {
	query := fmt.Sprintf("SELECT %s FROM roles WHERE id = $1", roleColumns)
	return scanRole(r.pgpool.QueryRow(ctx, query, roleID))
}

func (r *PostgresRoleRepo) UpdateRole(ctx context.Context, roleID uuid.UUID, params UpdateRoleParams) (*api.Role, error) {
	ctx, span := otel.Tracer("RoleRepo").Start(ctx, "UpdateRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.sql.table", "roles"),
		attribute.String("db.role.id", roleID.String()),
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

	if params.Title != nil {
		addClause("title", *params.Title)
	}
	if params.Permissions != nil {
		addClause("permissions", *params.Permissions)
	}

	if len(setClauses) == 0 {
		return r.GetRole(ctx, roleID)
	}

	addClause("modified_by", params.ModifiedBy)
	addClause("date_modified", time.Now())
	args = append(args, roleID)

	query := fmt.Sprintf("UPDATE roles SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, roleColumns)

	role, err := scanRole(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: a role with that title already exists", api.ErrConflict)
		}
		return nil, err
	}
	return role, nil
}

func (r *PostgresRoleRepo) DeleteRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	ctx, span := otel.Tracer("RoleRepo").Start(ctx, "DeleteRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "DELETE"),
		attribute.String("db.sql.table", "roles"),
		attribute.String("db.role.id", roleID.String()),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	assignTag, err := tx.Exec(ctx, "DELETE FROM user_roles WHERE role_id = $1", roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to remove role assignments: %w", err)
	}

	roleTag, err := tx.Exec(ctx, "DELETE FROM roles WHERE id = $1", roleID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete role: %w", err)
	}
	if roleTag.RowsAffected() == 0 {
		return 0, api.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit role deletion: %w", err)
	}
	return int(assignTag.RowsAffected()), nil
}

func (r *PostgresRoleRepo) ListRoles(ctx context.Context, params ListRolesParams) ([]api.Role, int, error) {
	page := params.Page.Normalize()

	direction := "ASC"
	if params.Order == api.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM roles
		WHERE title ILIKE '%%' || $1 || '%%'
		ORDER BY date_created %s
		OFFSET $2 LIMIT $3`, roleColumns, direction)

	rows, err := r.pgpool.Query(ctx, query, params.TitleFilter, page.Skip, page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query roles: %w", err)
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
			return nil, 0, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed reading roles: %w", err)
	}

	// Total respects the filter but not the page window.
	var total int
	err = r.pgpool.QueryRow(ctx,
		"SELECT COUNT(*) FROM roles WHERE title ILIKE '%' || $1 || '%'",
		params.TitleFilter).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count roles: %w", err)
	}

	return roles, total, nil
}

func (r *PostgresRoleRepo) AssignRole(ctx context.Context, userID, roleID uuid.UUID) (*api.UserRole, error) {
	ctx, span := otel.Tracer("RoleRepo").Start(ctx, "AssignRole", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "user_roles"),
	))
	defer span.End()

	var assignment api.UserRole
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		RETURNING id, user_id, role_id`, userID, roleID).
		Scan(&assignment.ID, &assignment.UserID, &assignment.RoleID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: the role is already assigned to the user", api.ErrConflict)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: user or role does not exist", api.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to assign role: %w", err)
	}
	return &assignment, nil
}

func (r *PostgresRoleRepo) UnassignRole(ctx context.Context, userID, roleID uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx,
		"DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2", userID, roleID)
	if err != nil {
		return fmt.Errorf("failed to unassign role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return api.ErrNotFound
	}
	return nil
}

func (r *PostgresRoleRepo) ListAssignmentsForRole(ctx context.Context, roleID uuid.UUID, page api.PageParams) ([]AssignmentOut, int, error) {
	page = page.Normalize()

	rows, err := r.pgpool.Query(ctx, `
		SELECT ur.id, ur.user_id, ur.role_id,
		       u.id, u.email, u.password_hash, u.is_active, u.is_super_admin,
		       u.first_name, u.last_name, u.avatar_url, u.last_login,
		       u.access_begin, u.access_end, u.last_password_reset_token,
		       u.created_at, u.updated_at
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role_id = $1
		ORDER BY u.created_at ASC
		OFFSET $2 LIMIT $3`, roleID, page.Skip, page.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query role assignments: %w", err)
	}
	defer rows.Close()

	var assignments []AssignmentOut
	for rows.Next() {
		var a AssignmentOut
		u := &a.User
		err := rows.Scan(
			&a.ID, &a.UserID, &a.RoleID,
			&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.IsSuperAdmin,
			&u.FirstName, &u.LastName, &u.AvatarURL, &u.LastLogin,
			&u.AccessBegin, &u.AccessEnd, &u.LastPasswordToken,
			&u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan role assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed reading role assignments: %w", err)
	}

	var total int
	err = r.pgpool.QueryRow(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE role_id = $1", roleID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count role assignments: %w", err)
	}

	return assignments, total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
