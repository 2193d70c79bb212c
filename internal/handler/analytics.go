package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/procurehub/marketplace-api/internal/metrics"
	"github.com/procurehub/marketplace-api/internal/middleware"
	"github.com/procurehub/marketplace-api/internal/model"
	"github.com/procurehub/marketplace-api/internal/repository"
)

const maxBatchEvents = 50

// GeoHeaders names the CDN/proxy headers geo fields are read from.
type GeoHeaders struct {
	Country string
	Region  string
	City    string
}

// AnalyticsHandler ingests vendor visibility events and serves the
// per-vendor aggregations.
type AnalyticsHandler struct {
	Analytics      *repository.AnalyticsRepo
	Vendors        *repository.VendorRepo
	Geo            GeoHeaders
	FrontendOrigin string
}

type trackRequest struct {
	VendorID  uint64            `json:"vendorId"`
	EventType model.EventType   `json:"eventType"`
	SessionID string            `json:"sessionId"`
	Source    model.EventSource `json:"source"`
	Metadata  map[string]string `json:"metadata"`
}

type batchRequest struct {
	Events []trackRequest `json:"events"`
}

// Track ingests one event. Public: tracking pixels and frontend beacons
// carry no credentials.
func (h *AnalyticsHandler) Track(c echo.Context) error {
	var req trackRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	ev, ok := h.buildEvent(c, req)
	if !ok {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "vendorId and a known eventType are required")
	}
	if err := h.Analytics.Insert(c.Request().Context(), ev); err != nil {
		return err
	}
	metrics.AnalyticsEvents.WithLabelValues(string(ev.EventType)).Inc()

	if ev.EventType == model.EventAIMention {
		h.recordReferral(c, ev, req.Metadata)
	}
	return respond(c, http.StatusOK, echo.Map{"tracked": true, "sessionId": ev.SessionID})
}

// Batch ingests up to 50 events atomically. Events failing validation are
// silently dropped and reported as skipped.
func (h *AnalyticsHandler) Batch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Malformed request body")
	}
	if len(req.Events) == 0 {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "events must not be empty")
	}
	if len(req.Events) > maxBatchEvents {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "at most 50 events per batch")
	}

	events := make([]model.AnalyticsEvent, 0, len(req.Events))
	skipped := 0
	for _, e := range req.Events {
		ev, ok := h.buildEvent(c, e)
		if !ok {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := h.Analytics.InsertBatch(c.Request().Context(), events); err != nil {
		return err
	}
	for _, ev := range events {
		metrics.AnalyticsEvents.WithLabelValues(string(ev.EventType)).Inc()
	}
	return respond(c, http.StatusOK, echo.Map{"inserted": len(events), "skipped": skipped})
}

// buildEvent validates a raw event and fills the server-derived fields.
func (h *AnalyticsHandler) buildEvent(c echo.Context, req trackRequest) (model.AnalyticsEvent, bool) {
	if req.VendorID == 0 || !req.EventType.Valid() {
		return model.AnalyticsEvent{}, false
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	referrer := req.Source.Referrer
	if referrer == "" {
		referrer = c.Request().Header.Get("Referer")
	}
	source := req.Source
	source.Referrer = ClassifyReferrer(referrer, h.FrontendOrigin)

	r := c.Request()
	return model.AnalyticsEvent{
		VendorID:  req.VendorID,
		EventType: req.EventType,
		SessionID: sessionID,
		Source:    source,
		Device:    ParseDevice(r.Header.Get("User-Agent")),
		Geo: model.Geo{
			Country: r.Header.Get(h.Geo.Country),
			Region:  r.Header.Get(h.Geo.Region),
			City:    r.Header.Get(h.Geo.City),
		},
		Metadata:  req.Metadata,
		Timestamp: time.Now().UTC(),
	}, true
}

// recordReferral mirrors an ai_mention event into the referral stream.
func (h *AnalyticsHandler) recordReferral(c echo.Context, ev model.AnalyticsEvent, meta map[string]string) {
	ref := model.AIReferral{
		VendorID:  ev.VendorID,
		Assistant: meta["assistant"],
		Query:     meta["query"],
		SessionID: ev.SessionID,
		Timestamp: ev.Timestamp,
	}
	if ref.Assistant == "" {
		ref.Assistant = "unknown"
	}
	_ = h.Analytics.InsertReferral(c.Request().Context(), ref)
}

// Stats returns the authenticated vendor's event totals by type.
func (h *AnalyticsHandler) Stats(c echo.Context) error {
	vendorID, from, to, err := h.window(c)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	}
	totals, err := h.Analytics.TotalsByType(c.Request().Context(), vendorID, from, to)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"totals": totals, "from": from, "to": to})
}

// Daily returns per-day event counts in UTC.
func (h *AnalyticsHandler) Daily(c echo.Context) error {
	vendorID, from, to, err := h.window(c)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	}
	buckets, err := h.Analytics.DailyCounts(c.Request().Context(), vendorID, from, to)
	if err != nil {
		return err
	}
	if buckets == nil {
		buckets = []repository.DailyBucket{}
	}
	return respond(c, http.StatusOK, echo.Map{"daily": buckets})
}

// Sources returns the vendor's most frequent referrer classes.
func (h *AnalyticsHandler) Sources(c echo.Context) error {
	vendorID, from, to, err := h.window(c)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	sources, err := h.Analytics.TopSources(c.Request().Context(), vendorID, from, to, limit)
	if err != nil {
		return err
	}
	if sources == nil {
		sources = []repository.SourceCount{}
	}
	return respond(c, http.StatusOK, echo.Map{"sources": sources})
}

// Geo returns the vendor's geographic event distribution.
func (h *AnalyticsHandler) GeoStats(c echo.Context) error {
	vendorID, from, to, err := h.window(c)
	if err != nil {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	}
	dist, err := h.Analytics.GeoDistribution(c.Request().Context(), vendorID, from, to)
	if err != nil {
		return err
	}
	if dist == nil {
		dist = []repository.GeoCount{}
	}
	return respond(c, http.StatusOK, echo.Map{"geo": dist})
}

// VendorSummary is the public visibility summary for a vendor profile page:
// totals by type over a 7d or 30d period, nothing else.
func (h *AnalyticsHandler) VendorSummary(c echo.Context) error {
	vendorID, err := strconv.ParseUint(c.Param("vendorId"), 10, 64)
	if err != nil || vendorID == 0 {
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "Invalid vendorId")
	}
	days := 30
	switch c.QueryParam("period") {
	case "", "30d":
	case "7d":
		days = 7
	default:
		return respondErr(c, http.StatusBadRequest, "INVALID_INPUT", "period must be 7d or 30d")
	}

	if _, err := h.Vendors.GetByID(c.Request().Context(), vendorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return respondErr(c, http.StatusNotFound, "NOT_FOUND", "Vendor not found")
		}
		return err
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -days)
	totals, err := h.Analytics.TotalsByType(c.Request().Context(), vendorID, from, to)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{
		"vendorId": vendorID,
		"period":   strconv.Itoa(days) + "d",
		"totals":   totals,
	})
}

// window resolves the authenticated vendor id and the [from, to) range from
// the query, defaulting to the last 30 days.
func (h *AnalyticsHandler) window(c echo.Context) (uint64, time.Time, time.Time, error) {
	vendorID := middleware.PrincipalID(c)
	if vendorID == 0 || middleware.PrincipalUserType(c) != model.PrincipalVendor {
		return 0, time.Time{}, time.Time{}, errors.New("vendor authentication required")
	}

	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("from: must be RFC3339")
		}
		from = t.UTC()
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return 0, time.Time{}, time.Time{}, errors.New("to: must be RFC3339")
		}
		to = t.UTC()
	}
	if !from.Before(to) {
		return 0, time.Time{}, time.Time{}, errors.New("from must be before to")
	}
	return vendorID, from, to, nil
}

// ClassifyReferrer buckets a raw referrer URL into a traffic-source class.
func ClassifyReferrer(referrer, frontendOrigin string) string {
	if referrer == "" {
		return "direct"
	}
	u, err := url.Parse(referrer)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Hostname())

	if fo, err := url.Parse(frontendOrigin); err == nil && fo.Host != "" {
		if host == strings.ToLower(fo.Hostname()) {
			return "internal"
		}
	}
	switch {
	case strings.Contains(host, "google."):
		return "google"
	case strings.Contains(host, "bing."):
		return "bing"
	case strings.Contains(host, "facebook.") || strings.Contains(host, "fb."):
		return "facebook"
	case strings.Contains(host, "linkedin."):
		return "linkedin"
	case strings.Contains(host, "twitter.") || host == "t.co" || host == "x.com":
		return "twitter"
	}
	return "unknown"
}

// ParseDevice derives coarse device facts from a User-Agent header. Lookup
// tables only, no UA-parsing dependency.
func ParseDevice(ua string) model.Device {
	lower := strings.ToLower(ua)
	d := model.Device{Type: "desktop"}
	if ua == "" {
		d.Type = "unknown"
		return d
	}

	switch {
	case strings.Contains(lower, "bot") || strings.Contains(lower, "crawler") || strings.Contains(lower, "spider"):
		d.Type = "bot"
	case strings.Contains(lower, "ipad") || strings.Contains(lower, "tablet"):
		d.Type = "tablet"
	case strings.Contains(lower, "mobile") || strings.Contains(lower, "iphone") || strings.Contains(lower, "android"):
		d.Type = "mobile"
	}

	switch {
	case strings.Contains(ua, "Edg/") || strings.Contains(ua, "Edge/"):
		d.Browser = "Edge"
	case strings.Contains(ua, "OPR/") || strings.Contains(ua, "Opera"):
		d.Browser = "Opera"
	case strings.Contains(ua, "Chrome/"):
		d.Browser = "Chrome"
	case strings.Contains(ua, "Firefox/"):
		d.Browser = "Firefox"
	case strings.Contains(ua, "Safari/"):
		d.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "Windows"):
		d.OS = "Windows"
	case strings.Contains(ua, "Android"):
		d.OS = "Android"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad"):
		d.OS = "iOS"
	case strings.Contains(ua, "Mac OS"):
		d.OS = "macOS"
	case strings.Contains(ua, "Linux"):
		d.OS = "Linux"
	}
	return d
}
