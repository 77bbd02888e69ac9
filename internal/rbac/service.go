package rbac

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("rbac: not found")

// Service resolves roles and effective permissions from PostgreSQL.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// EffectivePermissions returns the union of permissions granted to a user
// through role membership.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	const query = `
		SELECT DISTINCT rp.permission
		FROM user_roles ur
		JOIN role_permissions rp ON rp.role_id = ur.role_id
		WHERE ur.user_id = $1
		ORDER BY rp.permission`
	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	const query = `SELECT id, name, description, created_at FROM roles ORDER BY name`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// GetRole fetches a role with its permissions.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleWithPermissions, error) {
	const query = `SELECT id, name, description, created_at FROM roles WHERE id = $1`
	var role RoleWithPermissions
	err := s.pool.QueryRow(ctx, query, id).Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RoleWithPermissions{}, ErrNotFound
		}
		return RoleWithPermissions{}, err
	}

	const permsQuery = `SELECT permission FROM role_permissions WHERE role_id = $1 ORDER BY permission`
	rows, err := s.pool.Query(ctx, permsQuery, id)
	if err != nil {
		return RoleWithPermissions{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return RoleWithPermissions{}, err
		}
		role.Permissions = append(role.Permissions, p)
	}
	return role, rows.Err()
}

// AssignRole grants a role to a user.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64) error {
	const query = `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, role_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, query, userID, roleID)
	return err
}

// RevokeRole removes a role from a user.
func (s *Service) RevokeRole(ctx context.Context, userID, roleID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizePermission(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
