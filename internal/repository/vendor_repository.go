package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
)

type VendorRepo struct{ DB *sql.DB }

func NewVendorRepo(db *sql.DB) *VendorRepo { return &VendorRepo{DB: db} }

const vendorCols = `id,email,slug,company,phone,website,services,description,regions,postcodes,
	nationwide,city,county,postcode,tier,status,show_pricing,rating_avg,rating_count,
	password_hash,reset_hash,reset_expires,created_at,updated_at`

// Create inserts a vendor and returns its ID. Email and slug are normalized
// to lowercase before persistence.
func (r *VendorRepo) Create(ctx context.Context, v model.Vendor) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(v.Email))
	slug := strings.ToLower(strings.TrimSpace(v.Slug))
	services, _ := json.Marshal(orEmptyTags(v.Services))
	regions, _ := json.Marshal(orEmpty(v.Regions))
	postcodes, _ := json.Marshal(orEmpty(v.Postcodes))
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO vendors (email, slug, company, phone, website, services, description,
			regions, postcodes, nationwide, city, county, postcode, tier, status, show_pricing, password_hash)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		email, slug, v.Company, v.Phone, v.Website, services, v.Description,
		regions, postcodes, v.Nationwide, v.City, v.County, v.Postcode,
		string(v.Tier), string(v.Status), v.ShowPricing, v.PasswordHash)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a vendor by normalized email.
func (r *VendorRepo) GetByEmail(ctx context.Context, email string) (model.Vendor, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanVendor(r.DB.QueryRowContext(ctx,
		"SELECT "+vendorCols+" FROM vendors WHERE email=? LIMIT 1", email))
}

// GetByID fetches a vendor by id.
func (r *VendorRepo) GetByID(ctx context.Context, id uint64) (model.Vendor, error) {
	return scanVendor(r.DB.QueryRowContext(ctx,
		"SELECT "+vendorCols+" FROM vendors WHERE id=? LIMIT 1", id))
}

// GetBySlug fetches a vendor by its URL slug.
func (r *VendorRepo) GetBySlug(ctx context.Context, slug string) (model.Vendor, error) {
	return scanVendor(r.DB.QueryRowContext(ctx,
		"SELECT "+vendorCols+" FROM vendors WHERE slug=? LIMIT 1", strings.ToLower(slug)))
}

// ListActive returns all active vendors ordered by id. The matching engine
// treats the result as its candidate set for one scoring pass.
func (r *VendorRepo) ListActive(ctx context.Context) ([]model.Vendor, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+vendorCols+" FROM vendors WHERE status=? ORDER BY id", string(model.VendorActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Vendor
	for rows.Next() {
		v, err := scanVendorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SearchActive returns active vendors whose company, description or city
// contains the query substring (case-insensitive), optionally filtered by
// service tag. Plain LIKE matching, no full-text.
func (r *VendorRepo) SearchActive(ctx context.Context, query string, service model.ServiceTag) ([]model.Vendor, error) {
	q := "SELECT " + vendorCols + " FROM vendors WHERE status=?"
	args := []interface{}{string(model.VendorActive)}
	if query != "" {
		q += " AND (LOWER(company) LIKE ? OR LOWER(description) LIKE ? OR LOWER(city) LIKE ?)"
		needle := "%" + strings.ToLower(query) + "%"
		args = append(args, needle, needle, needle)
	}
	if service != "" {
		q += " AND JSON_CONTAINS(services, JSON_QUOTE(?))"
		args = append(args, string(service))
	}
	q += " ORDER BY tier DESC, rating_avg DESC, id LIMIT 100"

	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Vendor
	for rows.Next() {
		v, err := scanVendorRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateProfile updates the vendor-editable fields.
func (r *VendorRepo) UpdateProfile(ctx context.Context, v model.Vendor) error {
	services, _ := json.Marshal(orEmptyTags(v.Services))
	regions, _ := json.Marshal(orEmpty(v.Regions))
	postcodes, _ := json.Marshal(orEmpty(v.Postcodes))
	res, err := r.DB.ExecContext(ctx,
		`UPDATE vendors SET company=?, phone=?, website=?, services=?, description=?,
			regions=?, postcodes=?, nationwide=?, city=?, county=?, postcode=?, show_pricing=?
		 WHERE id=?`,
		v.Company, v.Phone, v.Website, services, v.Description,
		regions, postcodes, v.Nationwide, v.City, v.County, v.Postcode, v.ShowPricing, v.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetResetToken stores the SHA-256 hash of a password-reset token with its
// expiry. Passing an empty hash clears any pending reset.
func (r *VendorRepo) SetResetToken(ctx context.Context, vendorID uint64, hash string, expires *time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE vendors SET reset_hash=?, reset_expires=? WHERE id=?",
		hash, expires, vendorID)
	return err
}

// GetByResetHash returns the vendor holding an unexpired reset token hash.
func (r *VendorRepo) GetByResetHash(ctx context.Context, hash string) (model.Vendor, error) {
	return scanVendor(r.DB.QueryRowContext(ctx,
		"SELECT "+vendorCols+" FROM vendors WHERE reset_hash=? AND reset_hash<>'' AND reset_expires > UTC_TIMESTAMP() LIMIT 1",
		hash))
}

// UpdatePassword replaces the password hash and clears reset state.
func (r *VendorRepo) UpdatePassword(ctx context.Context, vendorID uint64, passwordHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE vendors SET password_hash=?, reset_hash='', reset_expires=NULL WHERE id=?",
		passwordHash, vendorID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type vendorScanner interface {
	Scan(dest ...interface{}) error
}

func scanVendor(row *sql.Row) (model.Vendor, error) {
	v, err := scanVendorRows(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Vendor{}, ErrNotFound
	}
	return v, err
}

func scanVendorRows(s vendorScanner) (model.Vendor, error) {
	var (
		v                            model.Vendor
		services, regions, postcodes []byte
		resetExpires, updated        sql.NullTime
	)
	err := s.Scan(&v.ID, &v.Email, &v.Slug, &v.Company, &v.Phone, &v.Website,
		&services, &v.Description, &regions, &postcodes,
		&v.Nationwide, &v.City, &v.County, &v.Postcode, &v.Tier, &v.Status,
		&v.ShowPricing, &v.Rating.Average, &v.Rating.Count,
		&v.PasswordHash, &v.ResetHash, &resetExpires, &v.CreatedAt, &updated)
	if err != nil {
		return model.Vendor{}, err
	}
	_ = json.Unmarshal(services, &v.Services)
	_ = json.Unmarshal(regions, &v.Regions)
	_ = json.Unmarshal(postcodes, &v.Postcodes)
	if resetExpires.Valid {
		t := resetExpires.Time
		v.ResetExpires = &t
	}
	if updated.Valid {
		t := updated.Time
		v.UpdatedAt = &t
	}
	return v, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyTags(s []model.ServiceTag) []model.ServiceTag {
	if s == nil {
		return []model.ServiceTag{}
	}
	return s
}
