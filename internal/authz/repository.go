package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines the lookups the resolver performs. Every query is
// tenant-scoped in its predicate; nothing is filtered after an unscoped fetch.
type RepositoryPort interface {
	GetActingUser(ctx context.Context, userID string) (ActingUser, error)
	GetUserPermission(ctx context.Context, userID, tenantID, moduleCode string) (UserPermission, error)
	GetRolePermission(ctx context.Context, roleID, moduleCode string) (RolePermission, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActingUser loads the acting user's tenant, role, and role kind.
func (r *Repository) GetActingUser(ctx context.Context, userID string) (ActingUser, error) {
	var (
		user ActingUser
		kind string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, role_id, role_kind FROM users WHERE id=$1 AND is_active`,
		userID).Scan(&user.ID, &user.TenantID, &user.RoleID, &kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ActingUser{}, shared.ErrNotFound
		}
		return ActingUser{}, err
	}
	roleKind, err := ParseRoleKind(kind)
	if err != nil {
		return ActingUser{}, err
	}
	user.RoleKind = roleKind
	return user, nil
}

// GetUserPermission fetches the per-user override row for one triple. At most
// one row exists per (user, tenant, module).
func (r *Repository) GetUserPermission(ctx context.Context, userID, tenantID, moduleCode string) (UserPermission, error) {
	var p UserPermission
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, tenant_id, module_code, can_read, can_create, can_update, can_delete
FROM user_permissions WHERE user_id=$1 AND tenant_id=$2 AND module_code=$3`,
		userID, tenantID, moduleCode).Scan(
		&p.UserID, &p.TenantID, &p.ModuleCode,
		&p.CanRead, &p.CanCreate, &p.CanUpdate, &p.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserPermission{}, shared.ErrNotFound
		}
		return UserPermission{}, err
	}
	return p, nil
}

// GetRolePermission fetches the role default row for a module.
func (r *Repository) GetRolePermission(ctx context.Context, roleID, moduleCode string) (RolePermission, error) {
	var p RolePermission
	err := r.pool.QueryRow(ctx,
		`SELECT role_id, module_code, can_read, can_create, can_update, can_delete
FROM role_permissions WHERE role_id=$1 AND module_code=$2`,
		roleID, moduleCode).Scan(
		&p.RoleID, &p.ModuleCode,
		&p.CanRead, &p.CanCreate, &p.CanUpdate, &p.CanDelete)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RolePermission{}, shared.ErrNotFound
		}
		return RolePermission{}, err
	}
	return p, nil
}

var _ RepositoryPort = (*Repository)(nil)
