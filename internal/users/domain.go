package users

import "time"

// User is the admin-facing view of an account within a tenant.
type User struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	RoleID    *string   `json:"role_id,omitempty"`
	RoleKind  string    `json:"role_kind"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
