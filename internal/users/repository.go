package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines tenant-scoped user lookups.
type RepositoryPort interface {
	Get(ctx context.Context, tenantID, id string) (User, error)
	List(ctx context.Context, tenantID string, page, perPage int) ([]User, int, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get fetches a user within the tenant.
func (r *Repository) Get(ctx context.Context, tenantID, id string) (User, error) {
	var u User
	err := r.pool.QueryRow(ctx, `SELECT id, tenant_id, email, full_name, role_id, role_kind, is_active, created_at
FROM users WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(
		&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.RoleID, &u.RoleKind, &u.IsActive, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// List returns users within the tenant.
func (r *Repository) List(ctx context.Context, tenantID string, page, perPage int) ([]User, int, error) {
	if perPage <= 0 || perPage > 100 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id=$1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, tenant_id, email, full_name, role_id, role_kind, is_active, created_at
FROM users WHERE tenant_id=$1 ORDER BY full_name LIMIT $2 OFFSET $3`, tenantID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.TenantID, &u.Email, &u.FullName, &u.RoleID, &u.RoleKind, &u.IsActive, &u.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

var _ RepositoryPort = (*Repository)(nil)
