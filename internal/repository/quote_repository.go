package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/procurehub/marketplace-api/internal/model"
)

type QuoteRepo struct{ DB *sql.DB }

func NewQuoteRepo(db *sql.DB) *QuoteRepo { return &QuoteRepo{DB: db} }

const quoteCols = `id,user_id,industry_type,volume_total,volume_mono,volume_colour,paper_type,
	min_speed,max_lease_price,required_functions,colour_pref,location,invoices,matches,
	status,matched_at,created_at,updated_at`

// Create inserts a quote request in pending state and returns its ID.
func (r *QuoteRepo) Create(ctx context.Context, q model.QuoteRequest) (uint64, error) {
	funcs, _ := json.Marshal(orEmpty(q.RequiredFunctions))
	invoices, _ := json.Marshal(orEmpty(q.Invoices))
	matches, _ := json.Marshal([]model.Match{})

	var vt, vm, vc interface{}
	if q.MonthlyVolume != nil {
		vt, vm, vc = q.MonthlyVolume.Total, q.MonthlyVolume.Mono, q.MonthlyVolume.Colour
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO copierquoterequests (user_id, industry_type, volume_total, volume_mono,
			volume_colour, paper_type, min_speed, max_lease_price, required_functions,
			colour_pref, location, invoices, matches, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		q.UserID, q.IndustryType, vt, vm, vc, string(q.Type), q.MinSpeed, q.MaxLeasePrice,
		funcs, string(q.Colour), q.Location, invoices, matches, string(model.QuotePending))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches one quote request.
func (r *QuoteRepo) GetByID(ctx context.Context, id uint64) (model.QuoteRequest, error) {
	q, err := scanQuote(r.DB.QueryRowContext(ctx,
		"SELECT "+quoteCols+" FROM copierquoterequests WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.QuoteRequest{}, ErrNotFound
	}
	return q, err
}

// ListByUser returns a buyer's quote requests, newest first.
func (r *QuoteRepo) ListByUser(ctx context.Context, userID uint64) ([]model.QuoteRequest, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+quoteCols+" FROM copierquoterequests WHERE user_id=? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.QuoteRequest
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// StoreMatches persists the engine's output and transitions the record to
// matched. The update is compare-and-set on the expected current status so a
// concurrent transition cannot be overwritten.
func (r *QuoteRepo) StoreMatches(ctx context.Context, id uint64, from model.QuoteStatus, matches []model.Match) error {
	if matches == nil {
		matches = []model.Match{}
	}
	body, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE copierquoterequests SET matches=?, status=?, matched_at=? WHERE id=? AND status=?",
		body, string(model.QuoteMatched), time.Now().UTC(), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

// TransitionStatus moves a quote from one status to another with
// compare-and-set semantics. ErrConflict means the record was not in the
// expected state.
func (r *QuoteRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.QuoteStatus) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE copierquoterequests SET status=? WHERE id=? AND status=?",
		string(to), id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuote(s rowScanner) (model.QuoteRequest, error) {
	var (
		q                        model.QuoteRequest
		vt, vm, vc               sql.NullInt64
		funcs, invoices, matches []byte
		matchedAt                sql.NullTime
	)
	err := s.Scan(&q.ID, &q.UserID, &q.IndustryType, &vt, &vm, &vc, &q.Type,
		&q.MinSpeed, &q.MaxLeasePrice, &funcs, &q.Colour, &q.Location,
		&invoices, &matches, &q.Status, &matchedAt, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return model.QuoteRequest{}, err
	}
	if vt.Valid || vm.Valid || vc.Valid {
		q.MonthlyVolume = &model.MonthlyVolume{
			Total:  int(vt.Int64),
			Mono:   int(vm.Int64),
			Colour: int(vc.Int64),
		}
	}
	_ = json.Unmarshal(funcs, &q.RequiredFunctions)
	_ = json.Unmarshal(invoices, &q.Invoices)
	_ = json.Unmarshal(matches, &q.Matches)
	if matchedAt.Valid {
		t := matchedAt.Time
		q.MatchedAt = &t
	}
	return q, nil
}
