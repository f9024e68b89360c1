package modules

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines data access for modules and their enablements.
type RepositoryPort interface {
	GetModule(ctx context.Context, code string) (Module, error)
	GetEnablement(ctx context.Context, tenantID, moduleCode string) (Enablement, error)
	ListEnabledForTenant(ctx context.Context, tenantID string) ([]Module, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetModule fetches a module by code.
func (r *Repository) GetModule(ctx context.Context, code string) (Module, error) {
	var m Module
	err := r.pool.QueryRow(ctx,
		`SELECT code, name, is_active, created_at FROM modules WHERE code=$1`,
		code).Scan(&m.Code, &m.Name, &m.IsActive, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Module{}, shared.ErrNotFound
		}
		return Module{}, err
	}
	return m, nil
}

// GetEnablement fetches the tenant-scoped enablement row.
func (r *Repository) GetEnablement(ctx context.Context, tenantID, moduleCode string) (Enablement, error) {
	var e Enablement
	err := r.pool.QueryRow(ctx,
		`SELECT tenant_id, module_code, enabled, updated_at
FROM module_enablements WHERE tenant_id=$1 AND module_code=$2`,
		tenantID, moduleCode).Scan(&e.TenantID, &e.ModuleCode, &e.Enabled, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Enablement{}, shared.ErrNotFound
		}
		return Enablement{}, err
	}
	return e, nil
}

// ListEnabledForTenant returns active modules enabled for one tenant.
func (r *Repository) ListEnabledForTenant(ctx context.Context, tenantID string) ([]Module, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.code, m.name, m.is_active, m.created_at
FROM modules m
JOIN module_enablements e ON e.module_code = m.code
WHERE e.tenant_id=$1 AND e.enabled AND m.is_active
ORDER BY m.code`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Module
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.Code, &m.Name, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ RepositoryPort = (*Repository)(nil)
