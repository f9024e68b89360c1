package auth

import "time"

// User carries the credential and identity fields the login flow needs.
type User struct {
	ID           string
	TenantID     string
	Email        string
	FullName     string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}
