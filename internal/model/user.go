package model

import "time"

// Role is the closed set of user roles. Vendors authenticate through their
// own table and carry the synthetic role "vendor" in token claims.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known user roles.
func (r Role) Valid() bool { return r == RoleBuyer || r == RoleAdmin }

// PrincipalType distinguishes token owners across the two account tables.
type PrincipalType string

const (
	PrincipalUser   PrincipalType = "user"
	PrincipalVendor PrincipalType = "vendor"
	PrincipalAdmin  PrincipalType = "admin"
)

// User mirrors the `users` table. Buyers and administrators live here;
// suppliers are a separate entity (Vendor). Email is stored lowercase and
// PasswordHash never appears in any API response.
type User struct {
	ID           uint64     // users.id
	Email        string     // users.email (unique, lowercase)
	Name         string     // users.name
	Company      string     // users.company (optional label)
	Role         Role       // users.role
	PasswordHash string     // users.password_hash (bcrypt)
	CreatedAt    time.Time  // users.created_at
	UpdatedAt    *time.Time // users.updated_at (nullable)
}
