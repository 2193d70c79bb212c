package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/matching"
	"github.com/procurehub/marketplace-api/internal/metrics"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/queue"
	"github.com/procurehub/marketplace-api/internal/repository"
	"github.com/procurehub/marketplace-api/internal/upload"
)

const (
	maxVolume        = 1_000_000
	maxMinSpeed      = 200
	maxLeasePrice    = 100_000
	maxRequiredFuncs = 20
)

// QuoteStore is the slice of QuoteRepo the handler needs.
type QuoteStore interface {
	Create(ctx context.Context, q model.QuoteRequest) (uint64, error)
	GetByID(ctx context.Context, id uint64) (model.QuoteRequest, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.QuoteRequest, error)
	StoreMatches(ctx context.Context, id uint64, from model.QuoteStatus, matches []model.Match) error
	TransitionStatus(ctx context.Context, id uint64, from, to model.QuoteStatus) error
}

// VendorCatalog and ProductCatalog are the catalog reads a match pass needs.
type VendorCatalog interface {
	ListActive(ctx context.Context) ([]model.Vendor, error)
}

type ProductCatalog interface {
	ListAll(ctx context.Context) ([]model.VendorProduct, error)
}

// BuyerDirectory resolves the buyer behind a quote for notification payloads.
type BuyerDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// MatchPublisher emits quote.matched events. Implemented by service.Notifier.
type MatchPublisher interface {
	PublishQuoteMatched(ctx context.Context, ev queue.QuoteMatchedEvent) error
}

// QuoteHandler owns the quote-request lifecycle: submission with invoice
// uploads, matching, retrieval and status transitions.
type QuoteHandler struct {
	Quotes   QuoteStore
	Vendors  VendorCatalog
	Products ProductCatalog
	Users    BuyerDirectory
	Engine   *matching.Engine
	Uploads  *upload.Store
	Notifier MatchPublisher
	Logger   *slog.Logger
}

type quoteView struct {
	ID        uint64            `json:"id"`
	Status    model.QuoteStatus `json:"status"`
	Matches   []model.Match     `json:"matches"`
	Invoices  []string          `json:"invoices,omitempty"`
	MatchedAt *time.Time        `json:"matchedAt,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func viewQuote(q model.QuoteRequest) quoteView {
	matches := q.Matches
	if matches == nil {
		matches = []model.Match{}
	}
	return quoteView{
		ID: q.ID, Status: q.Status, Matches: matches,
		Invoices: q.Invoices, MatchedAt: q.MatchedAt, CreatedAt: q.CreatedAt,
	}
}

// Submit handles the multipart quote submission: validate the requirement
// fields, stage invoice files, persist the request and run a match pass.
func (h *QuoteHandler) Submit(c echo.Context) error {
	q, problems := h.parseQuoteForm(c)
	if len(problems) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"success":   false,
			"error":     "Validation failed",
			"code":      "INVALID_INPUT",
			"details":   problems,
			"requestId": middleware.RequestIDFrom(c),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
	q.UserID = middleware.PrincipalID(c)

	form, err := c.MultipartForm()
	if err == nil && form != nil {
		for _, fh := range form.File["invoices"] {
			path, err := h.Uploads.Save(fh)
			if err != nil {
				h.discardInvoices(q.Invoices)
				if errors.Is(err, upload.ErrExtensionNotAllowed) || errors.Is(err, upload.ErrContentMismatch) {
					return respondErr(c, http.StatusBadRequest, "INVALID_FILE", err.Error())
				}
				return err
			}
			q.Invoices = append(q.Invoices, path)
		}
	}

	ctx := c.Request().Context()
	id, err := h.Quotes.Create(ctx, q)
	if err != nil {
		h.discardInvoices(q.Invoices)
		return err
	}
	q.ID = id
	q.Status = model.QuotePending
	metrics.QuotesSubmitted.Inc()

	matches, err := h.runMatch(ctx, q)
	if err != nil {
		// Catalog unavailable: the request is stored, matching will run on
		// the next GET of matches.
		h.Logger.Warn("match pass failed on submit", "quote_id", id, "error", err)
		return respond(c, http.StatusCreated, echo.Map{
			"quoteId": id,
			"status":  model.QuotePending,
			"matches": []model.Match{},
		})
	}
	return respond(c, http.StatusCreated, echo.Map{
		"quoteId": id,
		"status":  model.QuoteMatched,
		"matches": matches,
	})
}

// Matches returns a quote's matches, re-running the engine when the record is
// still pending or holds no matches.
func (h *QuoteHandler) Matches(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid quote id")
	}
	ctx := c.Request().Context()
	q, err := h.Quotes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Quote not found")
		}
		return err
	}
	if !h.canAccess(c, q.UserID) {
		return respondErr(c, http.StatusForbidden, "FORBIDDEN", "Not your quote request")
	}

	needsMatch := q.Status == model.QuotePending ||
		(q.Status == model.QuoteMatched && len(q.Matches) == 0)
	if needsMatch {
		matches, err := h.runMatch(ctx, q)
		if err != nil {
			return respondErr(c, http.StatusServiceUnavailable, "CATALOG_UNAVAILABLE",
				"Vendor catalog unavailable, please retry")
		}
		now := time.Now().UTC()
		q.Matches = matches
		q.Status = model.QuoteMatched
		q.MatchedAt = &now
	}
	return respond(c, http.StatusOK, viewQuote(q))
}

// List returns a buyer's quote requests, newest first. Admins may list any
// user via ?userId=.
func (h *QuoteHandler) List(c echo.Context) error {
	userID := middleware.PrincipalID(c)
	if raw := c.QueryParam("userId"); raw != "" {
		requested, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid userId")
		}
		if requested != userID && middleware.PrincipalRole(c) != string(model.RoleAdmin) {
			return respondErr(c, http.StatusForbidden, "FORBIDDEN", "Not your quote requests")
		}
		userID = requested
	}

	quotes, err := h.Quotes.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	out := make([]quoteView, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, viewQuote(q))
	}
	return respond(c, http.StatusOK, echo.Map{"quotes": out})
}

type transitionRequest struct {
	Status model.QuoteStatus `json:"status"`
}

// Transition moves a quote through its state machine with compare-and-set
// semantics; a concurrent transition surfaces as a conflict.
func (h *QuoteHandler) Transition(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid quote id")
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil || !req.Status.Valid() {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Unknown target status")
	}

	ctx := c.Request().Context()
	q, err := h.Quotes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Quote not found")
		}
		return err
	}
	if !h.canAccess(c, q.UserID) {
		return respondErr(c, http.StatusForbidden, "FORBIDDEN", "Not your quote request")
	}
	if !q.Status.CanTransition(req.Status) {
		return respondErr(c, http.StatusBadRequest, "INVALID_TRANSITION",
			"Cannot move from "+string(q.Status)+" to "+string(req.Status))
	}
	if err := h.Quotes.TransitionStatus(ctx, id, q.Status, req.Status); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return respondErr(c, http.StatusConflict, "CONFLICT", "Quote was updated concurrently, retry")
		}
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"id": id, "status": req.Status})
}

// discardInvoices removes staged invoice files whose quote request never made
// it into the store.
func (h *QuoteHandler) discardInvoices(paths []string) {
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.Logger.Warn("discard staged invoice failed", "path", p, "error", err)
		}
	}
}

// canAccess reports whether the caller owns the quote or is an admin.
func (h *QuoteHandler) canAccess(c echo.Context, ownerID uint64) bool {
	if middleware.PrincipalRole(c) == string(model.RoleAdmin) {
		return true
	}
	return middleware.PrincipalID(c) == ownerID
}

// runMatch loads the catalog snapshot, scores it, persists the outcome and
// schedules vendor notifications. Losing the store race to a concurrent run
// is fine: the stored matches win.
func (h *QuoteHandler) runMatch(ctx context.Context, q model.QuoteRequest) ([]model.Match, error) {
	vendors, err := h.Vendors.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	products, err := h.Products.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	byVendor := make(map[uint64][]model.VendorProduct, len(vendors))
	for _, p := range products {
		byVendor[p.VendorID] = append(byVendor[p.VendorID], p)
	}
	candidates := make([]matching.Candidate, 0, len(vendors))
	for _, v := range vendors {
		candidates = append(candidates, matching.Candidate{Vendor: v, Products: byVendor[v.ID]})
	}

	matches := h.Engine.Match(q, candidates)
	if err := h.Quotes.StoreMatches(ctx, q.ID, q.Status, matches); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			stored, gerr := h.Quotes.GetByID(ctx, q.ID)
			if gerr != nil {
				return nil, gerr
			}
			return stored.Matches, nil
		}
		return nil, err
	}
	metrics.MatchesReturned.Observe(float64(len(matches)))

	if len(matches) > 0 {
		h.notify(q, matches, vendors)
	}
	return matches, nil
}

// notify publishes the quote.matched event in the background; a broker
// outage never blocks or fails the submission path.
func (h *QuoteHandler) notify(q model.QuoteRequest, matches []model.Match, vendors []model.Vendor) {
	byID := make(map[uint64]model.Vendor, len(vendors))
	for _, v := range vendors {
		byID[v.ID] = v
	}
	ev := queue.QuoteMatchedEvent{
		QuoteID:    q.ID,
		UserID:     q.UserID,
		Industry:   q.IndustryType,
		MatchCount: len(matches),
		MatchedAt:  time.Now().UTC(),
	}
	for _, m := range matches {
		v, ok := byID[m.VendorID]
		if !ok {
			continue
		}
		ev.Vendors = append(ev.Vendors, queue.MatchedVendor{
			VendorID: v.ID, Name: v.Company, Email: v.Email, Score: m.Score,
		})
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if u, err := h.Users.GetByID(ctx, q.UserID); err == nil {
			ev.UserCompany = u.Company
		}
		_ = h.Notifier.PublishQuoteMatched(ctx, ev)
	}()
}

// parseQuoteForm validates the multipart requirement fields and collects
// every problem instead of stopping at the first.
func (h *QuoteHandler) parseQuoteForm(c echo.Context) (model.QuoteRequest, []string) {
	var (
		q        model.QuoteRequest
		problems []string
	)
	q.IndustryType = c.FormValue("industryType")
	q.Location = c.FormValue("location")

	vol, err := parseVolume(c)
	if err != nil {
		problems = append(problems, err.Error())
	} else {
		q.MonthlyVolume = vol
	}

	if raw := c.FormValue("type"); raw != "" {
		size := model.PaperSize(raw)
		if !size.Valid() {
			problems = append(problems, "type: unknown paper size")
		}
		q.Type = size
	}
	if raw := c.FormValue("min_speed"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxMinSpeed {
			problems = append(problems, "min_speed: must be an integer between 1 and 200")
		}
		q.MinSpeed = n
	}
	if raw := c.FormValue("max_lease_price"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || f > maxLeasePrice {
			problems = append(problems, "max_lease_price: must be between 0 and 100000")
		}
		q.MaxLeasePrice = f
	}
	if raw := c.FormValue("required_functions"); raw != "" {
		var funcs []string
		if err := json.Unmarshal([]byte(raw), &funcs); err != nil {
			problems = append(problems, "required_functions: must be a JSON array of strings")
		} else if len(funcs) > maxRequiredFuncs {
			problems = append(problems, "required_functions: at most 20 entries")
		} else {
			q.RequiredFunctions = funcs
		}
	}
	if raw := c.FormValue("colour"); raw != "" {
		pref := model.ColourPreference(raw)
		if !pref.Valid() {
			problems = append(problems, "colour: must be \"colour\" or \"mono\"")
		}
		q.Colour = pref
	}
	return q, problems
}

// parseVolume reads the volume_total/volume_mono/volume_colour fields.
// Returns nil when none are present.
func parseVolume(c echo.Context) (*model.MonthlyVolume, error) {
	fields := [3]string{"volume_total", "volume_mono", "volume_colour"}
	var (
		vals [3]int
		seen bool
	)
	for i, name := range fields {
		raw := c.FormValue(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxVolume {
			return nil, errors.New(name + ": must be an integer between 0 and 1000000")
		}
		vals[i] = n
		seen = true
	}
	if !seen {
		return nil, nil
	}
	return &model.MonthlyVolume{Total: vals[0], Mono: vals[1], Colour: vals[2]}, nil
}
