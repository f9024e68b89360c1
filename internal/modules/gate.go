package modules

import (
	"context"
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Gate answers whether a module is available to a tenant at all. It is the
// tenant-level kill switch consulted before any role or user permission row.
type Gate struct {
	repo RepositoryPort
}

// NewGate constructs a Gate.
func NewGate(repo RepositoryPort) *Gate {
	return &Gate{repo: repo}
}

// IsModuleEnabled resolves the tenant-level switch for a module, fail-closed:
// an unknown code, a globally inactive module, or an absent/false enablement
// row all resolve to false. The returned error is only ever infrastructural;
// callers treat it as disabled plus a 5xx, never as a silent denial.
func (g *Gate) IsModuleEnabled(ctx context.Context, tenantID, moduleCode string) (bool, error) {
	if tenantID == "" || moduleCode == "" {
		return false, nil
	}

	module, err := g.repo.GetModule(ctx, moduleCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !module.IsActive {
		return false, nil
	}

	enablement, err := g.repo.GetEnablement(ctx, tenantID, moduleCode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return enablement.Enabled, nil
}

// EnabledModules lists the modules currently available to a tenant.
func (g *Gate) EnabledModules(ctx context.Context, tenantID string) ([]Module, error) {
	if tenantID == "" {
		return nil, nil
	}
	return g.repo.ListEnabledForTenant(ctx, tenantID)
}
