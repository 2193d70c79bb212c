package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/ai"
	"github.com/procurehub/marketplace-api/internal/auth"
	"github.com/procurehub/marketplace-api/internal/metrics"
	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

// AIHandler serves the AI-assistant surface: model suggestions, the public
// supplier directory and the API-key quote channel used by assistants.
type AIHandler struct {
	Gateway    *ai.Gateway
	Vendors    *repository.VendorRepo
	Users      *repository.UserRepo
	Analytics  *repository.AnalyticsRepo
	Matcher    *QuoteHandler
	BcryptCost int
}

// publicVendorView is the directory projection of a vendor: no email, no
// secrets, no reset state.
type publicVendorView struct {
	ID          uint64             `json:"id"`
	Slug        string             `json:"slug"`
	Company     string             `json:"company"`
	Phone       string             `json:"phone,omitempty"`
	Website     string             `json:"website,omitempty"`
	Services    []model.ServiceTag `json:"services"`
	Description string             `json:"description,omitempty"`
	Regions     []string           `json:"regions"`
	Nationwide  bool               `json:"nationwide"`
	City        string             `json:"city,omitempty"`
	County      string             `json:"county,omitempty"`
	Tier        model.Tier         `json:"tier"`
	Rating      model.Rating       `json:"rating"`
}

func viewPublicVendor(v model.Vendor) publicVendorView {
	return publicVendorView{
		ID: v.ID, Slug: v.Slug, Company: v.Company, Phone: v.Phone,
		Website: v.Website, Services: v.Services, Description: v.Description,
		Regions: v.Regions, Nationwide: v.Nationwide, City: v.City,
		County: v.County, Tier: v.Tier, Rating: v.Rating,
	}
}

// Suggest returns at most three advisory model suggestions for the stated
// requirements.
func (h *AIHandler) Suggest(c echo.Context) error {
	var req ai.SuggestRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	if problems := validateRequirements(req.MonthlyVolume, req.Type, req.MinSpeed,
		req.MaxLeasePrice, req.RequiredFunctions, req.Colour); len(problems) > 0 {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", strings.Join(problems, "; "))
	}

	suggestions, err := h.Gateway.Suggest(c.Request().Context(), req)
	if err != nil {
		metrics.AIRequests.WithLabelValues("error").Inc()
		return respondErr(c, http.StatusServiceUnavailable, "AI_UNAVAILABLE",
			"Suggestions are temporarily unavailable")
	}
	metrics.AIRequests.WithLabelValues("ok").Inc()
	return respond(c, http.StatusOK, echo.Map{"suggestions": suggestions})
}

type supplierSearchRequest struct {
	Query   string `json:"query"`
	Service string `json:"service"`
}

// SearchSuppliers serves both GET (?q=&service=) and POST (JSON body)
// directory lookups.
func (h *AIHandler) SearchSuppliers(c echo.Context) error {
	req := supplierSearchRequest{
		Query:   c.QueryParam("q"),
		Service: c.QueryParam("service"),
	}
	if c.Request().Method == http.MethodPost {
		if err := c.Bind(&req); err != nil {
			return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
		}
	}
	service := model.ServiceTag(req.Service)
	if req.Service != "" && !service.Valid() {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Unknown service tag")
	}

	vendors, err := h.Vendors.SearchActive(c.Request().Context(), req.Query, service)
	if err != nil {
		return err
	}
	out := make([]publicVendorView, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, viewPublicVendor(v))
	}
	return respond(c, http.StatusOK, echo.Map{"suppliers": out})
}

// Services lists the closed set of service categories.
func (h *AIHandler) Services(c echo.Context) error {
	return respond(c, http.StatusOK, echo.Map{"services": []model.ServiceTag{
		model.ServicePhotocopiers, model.ServiceTelecoms, model.ServiceCCTV,
		model.ServiceIT, model.ServiceSecurity, model.ServiceSoftware,
	}})
}

// Locations lists the distinct cities and regions covered by active vendors.
func (h *AIHandler) Locations(c echo.Context) error {
	vendors, err := h.Vendors.ListActive(c.Request().Context())
	if err != nil {
		return err
	}
	cities := make(map[string]struct{})
	regions := make(map[string]struct{})
	for _, v := range vendors {
		if v.City != "" {
			cities[v.City] = struct{}{}
		}
		for _, r := range v.Regions {
			if r != "" {
				regions[r] = struct{}{}
			}
		}
	}
	return respond(c, http.StatusOK, echo.Map{
		"cities":  sortedKeys(cities),
		"regions": sortedKeys(regions),
	})
}

// Supplier returns one vendor by numeric id or slug and records the visit as
// an ai_mention event.
func (h *AIHandler) Supplier(c echo.Context) error {
	key := c.Param("id")
	ctx := c.Request().Context()

	var (
		v   model.Vendor
		err error
	)
	if id, perr := strconv.ParseUint(key, 10, 64); perr == nil {
		v, err = h.Vendors.GetByID(ctx, id)
	} else {
		v, err = h.Vendors.GetBySlug(ctx, key)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Supplier not found")
		}
		return err
	}
	if v.Status != model.VendorActive {
		return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Supplier not found")
	}

	ev := model.AnalyticsEvent{
		VendorID:  v.ID,
		EventType: model.EventAIMention,
		SessionID: uuid.NewString(),
		Source:    model.EventSource{Page: "ai-directory"},
		Device:    ParseDevice(c.Request().Header.Get("User-Agent")),
		Timestamp: time.Now().UTC(),
	}
	_ = h.Analytics.Insert(ctx, ev)
	_ = h.Analytics.InsertReferral(ctx, model.AIReferral{
		VendorID:  v.ID,
		Assistant: assistantName(c),
		Query:     c.QueryParam("query"),
		SessionID: ev.SessionID,
		Timestamp: ev.Timestamp,
	})
	return respond(c, http.StatusOK, echo.Map{"supplier": viewPublicVendor(v)})
}

type aiQuoteRequest struct {
	Email             string                 `json:"email"`
	Name              string                 `json:"name"`
	Company           string                 `json:"company"`
	IndustryType      string                 `json:"industryType"`
	MonthlyVolume     *model.MonthlyVolume   `json:"monthlyVolume"`
	Type              model.PaperSize        `json:"type"`
	MinSpeed          int                    `json:"min_speed"`
	MaxLeasePrice     float64                `json:"max_lease_price"`
	RequiredFunctions []string               `json:"required_functions"`
	Colour            model.ColourPreference `json:"colour"`
	Location          string                 `json:"location"`
}

// Quote is the assistant-facing lead channel: JSON only, keyed by the
// buyer's email. Unknown emails get a placeholder account with an unusable
// random password; the buyer claims it later through password reset.
func (h *AIHandler) Quote(c echo.Context) error {
	var req aiQuoteRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	req.Email = strings.TrimSpace(req.Email)
	if !validEmail(req.Email) || req.Name == "" {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "name and a valid email are required")
	}
	if problems := validateRequirements(req.MonthlyVolume, req.Type, req.MinSpeed,
		req.MaxLeasePrice, req.RequiredFunctions, req.Colour); len(problems) > 0 {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", strings.Join(problems, "; "))
	}

	ctx := c.Request().Context()
	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		hash, herr := auth.HashPassword(uuid.NewString(), h.BcryptCost)
		if herr != nil {
			return herr
		}
		id, cerr := h.Users.Create(ctx, model.User{
			Email:        req.Email,
			Name:         req.Name,
			Company:      req.Company,
			Role:         model.RoleBuyer,
			PasswordHash: hash,
		})
		if cerr != nil {
			return cerr
		}
		u = model.User{ID: id}
	} else if err != nil {
		return err
	}

	q := model.QuoteRequest{
		UserID:            u.ID,
		IndustryType:      req.IndustryType,
		MonthlyVolume:     req.MonthlyVolume,
		Type:              req.Type,
		MinSpeed:          req.MinSpeed,
		MaxLeasePrice:     req.MaxLeasePrice,
		RequiredFunctions: req.RequiredFunctions,
		Colour:            req.Colour,
		Location:          req.Location,
	}
	id, err := h.Matcher.Quotes.Create(ctx, q)
	if err != nil {
		return err
	}
	q.ID = id
	q.Status = model.QuotePending
	metrics.QuotesSubmitted.Inc()

	matches, err := h.Matcher.runMatch(ctx, q)
	if err != nil {
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

// Docs returns a static route index for assistant integrations.
func (h *AIHandler) Docs(c echo.Context) error {
	return respond(c, http.StatusOK, echo.Map{
		"name": "procurehub assistant api",
		"routes": []echo.Map{
			{"method": "POST", "path": "/ai/suggest-copiers", "description": "Model suggestions for stated requirements"},
			{"method": "GET", "path": "/ai/suppliers", "description": "Search the supplier directory (?q=&service=)"},
			{"method": "POST", "path": "/ai/suppliers", "description": "Search the supplier directory (JSON body)"},
			{"method": "GET", "path": "/ai/services", "description": "List service categories"},
			{"method": "GET", "path": "/ai/locations", "description": "List covered cities and regions"},
			{"method": "GET", "path": "/ai/supplier/:id", "description": "Supplier detail by id or slug"},
			{"method": "POST", "path": "/ai/quote", "description": "Submit a quote request on behalf of a buyer"},
			{"method": "GET", "path": "/ai/health", "description": "Service health"},
			{"method": "GET", "path": "/ai/metrics", "description": "Prometheus metrics"},
		},
	})
}

func assistantName(c echo.Context) string {
	if a := c.QueryParam("assistant"); a != "" {
		return a
	}
	return "unknown"
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// validateRequirements applies the shared requirement bounds used by the
// quote and suggestion endpoints.
func validateRequirements(vol *model.MonthlyVolume, size model.PaperSize, minSpeed int,
	maxLease float64, funcs []string, colour model.ColourPreference) []string {
	var problems []string
	if vol != nil {
		for name, n := range map[string]int{"total": vol.Total, "mono": vol.Mono, "colour": vol.Colour} {
			if n < 0 || n > maxVolume {
				problems = append(problems, "monthlyVolume."+name+": must be between 0 and 1000000")
			}
		}
	}
	if size != "" && !size.Valid() {
		problems = append(problems, "type: unknown paper size")
	}
	if minSpeed != 0 && (minSpeed < 1 || minSpeed > maxMinSpeed) {
		problems = append(problems, "min_speed: must be between 1 and 200")
	}
	if maxLease < 0 || maxLease > maxLeasePrice {
		problems = append(problems, "max_lease_price: must be between 0 and 100000")
	}
	if len(funcs) > maxRequiredFuncs {
		problems = append(problems, "required_functions: at most 20 entries")
	}
	if !colour.Valid() {
		problems = append(problems, "colour: must be \"colour\" or \"mono\"")
	}
	sort.Strings(problems)
	return problems
}
