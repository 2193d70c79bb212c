package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
)

type AnalyticsRepo struct{ DB *sql.DB }

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{DB: db} }

// Insert appends one visibility event.
func (r *AnalyticsRepo) Insert(ctx context.Context, e model.AnalyticsEvent) error {
	source, _ := json.Marshal(e.Source)
	device, _ := json.Marshal(e.Device)
	geo, _ := json.Marshal(e.Geo)
	meta, _ := json.Marshal(orEmptyMap(e.Metadata))
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO vendoranalytics (vendor_id, event_type, session_id, source, device, geo, metadata, ts)
		 VALUES (?,?,?,?,?,?,?,?)`,
		e.VendorID, string(e.EventType), e.SessionID, source, device, geo, meta, e.Timestamp)
	return err
}

// InsertBatch appends a batch of events in one transaction so the batch
// commits atomically.
func (r *AnalyticsRepo) InsertBatch(ctx context.Context, events []model.AnalyticsEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vendoranalytics (vendor_id, event_type, session_id, source, device, geo, metadata, ts)
		 VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		source, _ := json.Marshal(e.Source)
		device, _ := json.Marshal(e.Device)
		geo, _ := json.Marshal(e.Geo)
		meta, _ := json.Marshal(orEmptyMap(e.Metadata))
		if _, err := stmt.ExecContext(ctx,
			e.VendorID, string(e.EventType), e.SessionID, source, device, geo, meta, e.Timestamp); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertReferral appends an AI-assistant referral event.
func (r *AnalyticsRepo) InsertReferral(ctx context.Context, ref model.AIReferral) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO aireferrals (vendor_id, assistant, query, session_id, ts) VALUES (?,?,?,?,?)",
		ref.VendorID, ref.Assistant, ref.Query, ref.SessionID, ref.Timestamp)
	return err
}

// InsertOutreach appends an outreach log entry.
func (r *AnalyticsRepo) InsertOutreach(ctx context.Context, o model.OutreachLog) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO outreachlogs (vendor_id, channel, subject, outcome, ts) VALUES (?,?,?,?,?)",
		o.VendorID, o.Channel, o.Subject, o.Outcome, o.Timestamp)
	return err
}

// TotalsByType returns event counts per type for a vendor over [from, to).
func (r *AnalyticsRepo) TotalsByType(ctx context.Context, vendorID uint64, from, to time.Time) (map[model.EventType]int64, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT event_type, COUNT(*) FROM vendoranalytics
		 WHERE vendor_id=? AND ts>=? AND ts<? GROUP BY event_type`,
		vendorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.EventType]int64)
	for rows.Next() {
		var (
			et string
			n  int64
		)
		if err := rows.Scan(&et, &n); err != nil {
			return nil, err
		}
		out[model.EventType(et)] = n
	}
	return out, rows.Err()
}

// DailyBucket is one UTC day of event counts.
type DailyBucket struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// DailyCounts returns per-day event totals for a vendor, computed in UTC.
func (r *AnalyticsRepo) DailyCounts(ctx context.Context, vendorID uint64, from, to time.Time) ([]DailyBucket, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DATE_FORMAT(ts, '%Y-%m-%d'), COUNT(*) FROM vendoranalytics
		 WHERE vendor_id=? AND ts>=? AND ts<? GROUP BY 1 ORDER BY 1`,
		vendorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyBucket
	for rows.Next() {
		var b DailyBucket
		if err := rows.Scan(&b.Day, &b.Count); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SourceCount pairs a traffic source with its event count.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}

// TopSources returns the most frequent referrer classes for a vendor.
func (r *AnalyticsRepo) TopSources(ctx context.Context, vendorID uint64, from, to time.Time, limit int) ([]SourceCount, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT COALESCE(NULLIF(JSON_UNQUOTE(JSON_EXTRACT(source, '$.referrer')), 'null'), 'direct') AS src, COUNT(*)
		 FROM vendoranalytics WHERE vendor_id=? AND ts>=? AND ts<?
		 GROUP BY src ORDER BY COUNT(*) DESC LIMIT ?`,
		vendorID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var s SourceCount
		if err := rows.Scan(&s.Source, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GeoCount is one row of the geographic distribution.
type GeoCount struct {
	Country string `json:"country"`
	Region  string `json:"region"`
	City    string `json:"city"`
	Count   int64  `json:"count"`
}

// GeoDistribution groups a vendor's events by country/region/city.
func (r *AnalyticsRepo) GeoDistribution(ctx context.Context, vendorID uint64, from, to time.Time) ([]GeoCount, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT COALESCE(JSON_UNQUOTE(JSON_EXTRACT(geo, '$.country')), ''),
				COALESCE(JSON_UNQUOTE(JSON_EXTRACT(geo, '$.region')), ''),
				COALESCE(JSON_UNQUOTE(JSON_EXTRACT(geo, '$.city')), ''),
				COUNT(*)
		 FROM vendoranalytics WHERE vendor_id=? AND ts>=? AND ts<?
		 GROUP BY 1,2,3 ORDER BY COUNT(*) DESC`,
		vendorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GeoCount
	for rows.Next() {
		var g GeoCount
		if err := rows.Scan(&g.Country, &g.Region, &g.City, &g.Count); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
