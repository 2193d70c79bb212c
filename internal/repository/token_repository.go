package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
)

// TokenRepo persists refresh tokens. Only SHA-256 hashes of raw tokens are
// stored; rotation is transactional so revoke-old and issue-new cannot be
// observed half-done.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

const tokenCols = `id,token_hash,user_id,vendor_id,user_type,expires_at,created_by_ip,
	revoked,revoked_at,revoked_by_ip,revoked_reason,replaced_by_hash,created_at`

// Store inserts a refresh token row.
func (r *TokenRepo) Store(ctx context.Context, t model.RefreshToken) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refreshtokens (token_hash, user_id, vendor_id, user_type, expires_at, created_by_ip)
		 VALUES (?,?,?,?,?,?)`,
		t.TokenHash, t.UserID, t.VendorID, string(t.UserType), t.ExpiresAt, t.CreatedByIP)
	return err
}

// GetByHash loads a token row regardless of state. ErrNotFound when absent.
func (r *TokenRepo) GetByHash(ctx context.Context, hash string) (model.RefreshToken, error) {
	var (
		t         model.RefreshToken
		userID    sql.NullInt64
		vendorID  sql.NullInt64
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+tokenCols+" FROM refreshtokens WHERE token_hash=? LIMIT 1", hash).
		Scan(&t.ID, &t.TokenHash, &userID, &vendorID, &t.UserType, &t.ExpiresAt, &t.CreatedByIP,
			&t.Revoked, &revokedAt, &t.RevokedByIP, &t.RevokedReason, &t.ReplacedByToken, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RefreshToken{}, ErrNotFound
	}
	if err != nil {
		return model.RefreshToken{}, err
	}
	if userID.Valid {
		v := uint64(userID.Int64)
		t.UserID = &v
	}
	if vendorID.Valid {
		v := uint64(vendorID.Int64)
		t.VendorID = &v
	}
	if revokedAt.Valid {
		ts := revokedAt.Time
		t.RevokedAt = &ts
	}
	return t, nil
}

// Rotate atomically revokes the old token (reason "Replaced by rotation",
// replaced_by set to the successor's hash) and inserts the new one. The
// compare-and-set on revoked=0 makes double rotation impossible: the loser
// of a race gets ErrRevoked.
func (r *TokenRepo) Rotate(ctx context.Context, oldHash string, next model.RefreshToken, ip string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE refreshtokens SET revoked=1, revoked_at=?, revoked_by_ip=?,
			revoked_reason='Replaced by rotation', replaced_by_hash=?
		 WHERE token_hash=? AND revoked=0`,
		time.Now().UTC(), ip, next.TokenHash, oldHash)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRevoked
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO refreshtokens (token_hash, user_id, vendor_id, user_type, expires_at, created_by_ip)
		 VALUES (?,?,?,?,?,?)`,
		next.TokenHash, next.UserID, next.VendorID, string(next.UserType), next.ExpiresAt, next.CreatedByIP); err != nil {
		return err
	}
	return tx.Commit()
}

// Revoke marks one token revoked with a reason. Idempotent: revoking an
// already-revoked token is a no-op.
func (r *TokenRepo) Revoke(ctx context.Context, hash, ip, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refreshtokens SET revoked=1, revoked_at=?, revoked_by_ip=?, revoked_reason=?
		 WHERE token_hash=? AND revoked=0`,
		time.Now().UTC(), ip, reason, hash)
	return err
}

// RevokeAllForUser revokes every active token belonging to a user principal.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, ip, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refreshtokens SET revoked=1, revoked_at=?, revoked_by_ip=?, revoked_reason=?
		 WHERE user_id=? AND revoked=0`,
		time.Now().UTC(), ip, reason, userID)
	return err
}

// RevokeAllForVendor revokes every active token belonging to a vendor principal.
func (r *TokenRepo) RevokeAllForVendor(ctx context.Context, vendorID uint64, ip, reason string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE refreshtokens SET revoked=1, revoked_at=?, revoked_by_ip=?, revoked_reason=?
		 WHERE vendor_id=? AND revoked=0`,
		time.Now().UTC(), ip, reason, vendorID)
	return err
}
