package database

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Table names follow the collections of the original deployment so existing
// data can be migrated in place.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		company VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(16) NOT NULL DEFAULT 'buyer',
		password_hash VARCHAR(100) NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NULL ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_email (email)
	)`,
	`CREATE TABLE IF NOT EXISTS vendors (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		slug VARCHAR(100) NOT NULL,
		company VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL DEFAULT '',
		website VARCHAR(255) NOT NULL DEFAULT '',
		services JSON NOT NULL,
		description TEXT NOT NULL,
		regions JSON NOT NULL,
		postcodes JSON NOT NULL,
		nationwide TINYINT(1) NOT NULL DEFAULT 0,
		city VARCHAR(100) NOT NULL DEFAULT '',
		county VARCHAR(100) NOT NULL DEFAULT '',
		postcode VARCHAR(16) NOT NULL DEFAULT '',
		tier VARCHAR(16) NOT NULL DEFAULT 'free',
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		show_pricing TINYINT(1) NOT NULL DEFAULT 0,
		rating_avg DOUBLE NOT NULL DEFAULT 0,
		rating_count INT NOT NULL DEFAULT 0,
		password_hash VARCHAR(100) NOT NULL,
		reset_hash VARCHAR(64) NOT NULL DEFAULT '',
		reset_expires DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NULL ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_vendors_email (email),
		UNIQUE KEY uq_vendors_slug (slug)
	)`,
	`CREATE TABLE IF NOT EXISTS vendorproducts (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		vendor_id BIGINT UNSIGNED NOT NULL,
		manufacturer VARCHAR(100) NOT NULL,
		model VARCHAR(100) NOT NULL,
		speed INT NOT NULL DEFAULT 0,
		description TEXT NOT NULL,
		total_machine_cost DOUBLE NOT NULL DEFAULT 0,
		cost_per_copy DOUBLE NOT NULL DEFAULT 0,
		colour TINYINT(1) NOT NULL DEFAULT 0,
		paper_sizes JSON NOT NULL,
		volume_min INT NOT NULL DEFAULT 0,
		volume_max INT NOT NULL DEFAULT 0,
		features JSON NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_products_vendor (vendor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS copierquoterequests (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		industry_type VARCHAR(100) NOT NULL DEFAULT '',
		volume_total INT NULL,
		volume_mono INT NULL,
		volume_colour INT NULL,
		paper_type VARCHAR(16) NOT NULL DEFAULT '',
		min_speed INT NOT NULL DEFAULT 0,
		max_lease_price DOUBLE NOT NULL DEFAULT 0,
		required_functions JSON NOT NULL,
		colour_pref VARCHAR(16) NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		invoices JSON NOT NULL,
		matches JSON NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'pending',
		matched_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY ix_quotes_user_created (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS refreshtokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		token_hash VARCHAR(64) NOT NULL,
		user_id BIGINT UNSIGNED NULL,
		vendor_id BIGINT UNSIGNED NULL,
		user_type VARCHAR(16) NOT NULL,
		expires_at DATETIME NOT NULL,
		created_by_ip VARCHAR(45) NOT NULL DEFAULT '',
		revoked TINYINT(1) NOT NULL DEFAULT 0,
		revoked_at DATETIME NULL,
		revoked_by_ip VARCHAR(45) NOT NULL DEFAULT '',
		revoked_reason VARCHAR(64) NOT NULL DEFAULT '',
		replaced_by_hash VARCHAR(64) NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uq_refresh_hash (token_hash),
		KEY ix_refresh_expires (expires_at),
		KEY ix_refresh_user (user_id),
		KEY ix_refresh_vendor (vendor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS vendoranalytics (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		vendor_id BIGINT UNSIGNED NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		source JSON NOT NULL,
		device JSON NOT NULL,
		geo JSON NOT NULL,
		metadata JSON NOT NULL,
		ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_analytics_vendor_ts (vendor_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aireferrals (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		vendor_id BIGINT UNSIGNED NOT NULL,
		assistant VARCHAR(64) NOT NULL DEFAULT '',
		query TEXT NOT NULL,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_referrals_vendor (vendor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS outreachlogs (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		vendor_id BIGINT UNSIGNED NOT NULL,
		channel VARCHAR(16) NOT NULL,
		subject VARCHAR(255) NOT NULL DEFAULT '',
		outcome VARCHAR(64) NOT NULL DEFAULT '',
		ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY ix_outreach_vendor (vendor_id)
	)`,
}

// Migrate creates missing tables and indexes. Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// StartReaper runs the retention sweep every interval until ctx is cancelled.
// MySQL has no TTL indexes, so expiry of refresh tokens and old analytics
// rows is emulated with periodic deletes.
func StartReaper(ctx context.Context, db *sql.DB, logger *slog.Logger, interval, analyticsRetention time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweep(ctx, db, logger, analyticsRetention)
			}
		}
	}()
}

func sweep(ctx context.Context, db *sql.DB, logger *slog.Logger, analyticsRetention time.Duration) {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if res, err := db.ExecContext(cctx, `DELETE FROM refreshtokens WHERE expires_at < UTC_TIMESTAMP()`); err != nil {
		logger.Warn("reaper: purge refresh tokens failed", "error", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("reaper: purged expired refresh tokens", "rows", n)
	}

	cutoff := time.Now().UTC().Add(-analyticsRetention)
	if res, err := db.ExecContext(cctx, `DELETE FROM vendoranalytics WHERE ts < ?`, cutoff); err != nil {
		logger.Warn("reaper: purge analytics failed", "error", err)
	} else if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("reaper: purged old analytics events", "rows", n)
	}
}
