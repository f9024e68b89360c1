package authz

import (
	"fmt"
	"strings"
)

// RoleKind is the coarse role tag carried by every user. The set is closed so
// every dispatch site is checked exhaustively.
type RoleKind string

const (
	// RoleKindSuperAdmin grants tenant-wide full access across all tenants.
	RoleKindSuperAdmin RoleKind = "SUPER_ADMIN"
	// RoleKindAdmin grants full access within the user's own tenant.
	RoleKindAdmin RoleKind = "ADMIN"
	// RoleKindStandard resolves through module gate and permission rows.
	RoleKindStandard RoleKind = "STANDARD"
)

// ParseRoleKind converts stored input into a RoleKind.
func ParseRoleKind(raw string) (RoleKind, error) {
	switch RoleKind(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleKindSuperAdmin:
		return RoleKindSuperAdmin, nil
	case RoleKindAdmin:
		return RoleKindAdmin, nil
	case RoleKindStandard:
		return RoleKindStandard, nil
	default:
		return "", fmt.Errorf("authz: unknown role kind %q", raw)
	}
}

// IsSuper reports whether the kind bypasses tenant isolation.
func (k RoleKind) IsSuper() bool {
	return k == RoleKindSuperAdmin
}

// Action enumerates the CRUD capabilities a permission row carries.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ParseAction converts external input into an Action.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionRead:
		return ActionRead, nil
	case ActionCreate:
		return ActionCreate, nil
	case ActionUpdate:
		return ActionUpdate, nil
	case ActionDelete:
		return ActionDelete, nil
	default:
		return "", fmt.Errorf("authz: unknown action %q", raw)
	}
}

// PermissionSet is the effective {read, create, update, delete} capability
// set for one (tenant, user, module) triple.
type PermissionSet struct {
	CanRead   bool `json:"can_read"`
	CanCreate bool `json:"can_create"`
	CanUpdate bool `json:"can_update"`
	CanDelete bool `json:"can_delete"`
}

// FullAccess returns a set with every capability granted.
func FullAccess() PermissionSet {
	return PermissionSet{CanRead: true, CanCreate: true, CanUpdate: true, CanDelete: true}
}

// DenyAll returns the empty capability set.
func DenyAll() PermissionSet {
	return PermissionSet{}
}

// Allows reports whether the set grants the given action.
func (p PermissionSet) Allows(action Action) bool {
	switch action {
	case ActionRead:
		return p.CanRead
	case ActionCreate:
		return p.CanCreate
	case ActionUpdate:
		return p.CanUpdate
	case ActionDelete:
		return p.CanDelete
	default:
		return false
	}
}

// ActingUser is the slice of a user row the resolver needs: tenant membership,
// optional role, and the coarse role kind.
type ActingUser struct {
	ID       string
	TenantID string
	RoleID   *string
	RoleKind RoleKind
}

// RolePermission is the default capability set for all users holding a role.
type RolePermission struct {
	RoleID     string
	ModuleCode string
	PermissionSet
}

// UserPermission overrides RolePermission for one specific user. A row with
// all four flags false is a valid, intentional deny override.
type UserPermission struct {
	UserID     string
	TenantID   string
	ModuleCode string
	PermissionSet
}
