package model

import "time"

// RefreshToken models an entry in the `refreshtokens` table. The raw token
// is an opaque high-entropy string returned once to the client; only its
// SHA-256 hash is stored. Exactly one of UserID or VendorID is set.
type RefreshToken struct {
	ID              uint64        // refreshtokens.id
	TokenHash       string        // refreshtokens.token_hash (unique)
	UserID          *uint64       // refreshtokens.user_id (nullable)
	VendorID        *uint64       // refreshtokens.vendor_id (nullable)
	UserType        PrincipalType // refreshtokens.user_type
	ExpiresAt       time.Time     // refreshtokens.expires_at
	CreatedByIP     string        // refreshtokens.created_by_ip
	Revoked         bool          // refreshtokens.revoked
	RevokedAt       *time.Time    // refreshtokens.revoked_at (nullable)
	RevokedByIP     string        // refreshtokens.revoked_by_ip
	RevokedReason   string        // refreshtokens.revoked_reason
	ReplacedByToken string        // refreshtokens.replaced_by_hash (hash of successor)
	CreatedAt       time.Time     // refreshtokens.created_at
}

// Active reports whether the token may still be exchanged.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}
