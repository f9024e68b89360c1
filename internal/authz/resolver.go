package authz

import (
	"context"
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/modules"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// ModuleGate is the tenant-level kill switch consulted before any permission
// row.
type ModuleGate interface {
	IsModuleEnabled(ctx context.Context, tenantID, moduleCode string) (bool, error)
}

// Resolver computes the effective capability set for a (tenant, user, module)
// triple. Resolution is read-only and deterministic for a given snapshot of
// the backing tables: two calls with no intervening writes return identical
// results.
type Resolver struct {
	repo RepositoryPort
	gate ModuleGate
}

// NewResolver constructs a Resolver.
func NewResolver(repo RepositoryPort, gate ModuleGate) *Resolver {
	return &Resolver{repo: repo, gate: gate}
}

// Resolve applies the layered precedence order, first match wins:
//
//  1. unresolved user            -> deny-all
//  2. SUPER_ADMIN                -> full access, cross-tenant
//  3. outside own tenant         -> deny-all
//  4. ADMIN                      -> full access, skipping the module gate and
//     both permission tables (matches the observed upstream behavior; see
//     DESIGN.md before relying on the gate bypass)
//  5. module gate disabled       -> deny-all
//  6. UserPermission row present -> exactly that row, all-false included
//  7. RolePermission row present -> exactly that row
//  8. deny-all
//
// Business outcomes never surface as errors; only infrastructure failures do,
// wrapped in a ResolutionError so callers answer 5xx instead of a silent 403.
func (r *Resolver) Resolve(ctx context.Context, tenantID, userID, moduleCode string) (PermissionSet, error) {
	user, err := r.repo.GetActingUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return DenyAll(), nil
		}
		return DenyAll(), shared.NewResolutionError(err)
	}

	if user.RoleKind == RoleKindSuperAdmin {
		return FullAccess(), nil
	}

	if user.TenantID != tenantID {
		return DenyAll(), nil
	}

	if user.RoleKind == RoleKindAdmin {
		return FullAccess(), nil
	}

	enabled, err := r.gate.IsModuleEnabled(ctx, tenantID, moduleCode)
	if err != nil {
		return DenyAll(), shared.NewResolutionError(err)
	}
	if !enabled {
		return DenyAll(), nil
	}

	userPerm, err := r.repo.GetUserPermission(ctx, userID, tenantID, moduleCode)
	if err == nil {
		return userPerm.PermissionSet, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return DenyAll(), shared.NewResolutionError(err)
	}

	if user.RoleID != nil {
		rolePerm, err := r.repo.GetRolePermission(ctx, *user.RoleID, moduleCode)
		if err == nil {
			return rolePerm.PermissionSet, nil
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return DenyAll(), shared.NewResolutionError(err)
		}
	}

	return DenyAll(), nil
}

// HasPermission resolves against the acting user's own tenant and answers a
// single action.
func (r *Resolver) HasPermission(ctx context.Context, userID, moduleCode string, action Action) (bool, error) {
	user, err := r.repo.GetActingUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return false, nil
		}
		return false, shared.NewResolutionError(err)
	}
	set, err := r.Resolve(ctx, user.TenantID, userID, moduleCode)
	if err != nil {
		return false, err
	}
	return set.Allows(action), nil
}

// ActingUser exposes the acting-user lookup for callers that need tenant
// scope and super status alongside a permission check.
func (r *Resolver) ActingUser(ctx context.Context, userID string) (ActingUser, error) {
	user, err := r.repo.GetActingUser(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ActingUser{}, shared.ErrNotFound
		}
		return ActingUser{}, shared.NewResolutionError(err)
	}
	return user, nil
}

var _ ModuleGate = (*modules.Gate)(nil)
