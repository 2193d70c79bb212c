package model

import "time"

// EventType is the closed enumeration of vendor visibility events.
type EventType string

const (
	EventView             EventType = "view"
	EventClick            EventType = "click"
	EventQuoteRequest     EventType = "quote_request"
	EventContact          EventType = "contact"
	EventWebsiteClick     EventType = "website_click"
	EventPhoneClick       EventType = "phone_click"
	EventAIMention        EventType = "ai_mention"
	EventSearchImpression EventType = "search_impression"
)

// Valid reports whether e is a known event type.
func (e EventType) Valid() bool {
	switch e {
	case EventView, EventClick, EventQuoteRequest, EventContact,
		EventWebsiteClick, EventPhoneClick, EventAIMention, EventSearchImpression:
		return true
	}
	return false
}

// EventSource describes where an event originated.
type EventSource struct {
	Page        string `json:"page,omitempty"`
	Referrer    string `json:"referrer,omitempty"`
	Campaign    string `json:"campaign,omitempty"`
	SearchQuery string `json:"searchQuery,omitempty"`
	Category    string `json:"category,omitempty"`
	Location    string `json:"location,omitempty"`
}

// Device is derived server-side from the User-Agent header.
type Device struct {
	Type    string `json:"type,omitempty"` // desktop, mobile, tablet, bot
	Browser string `json:"browser,omitempty"`
	OS      string `json:"os,omitempty"`
}

// Geo is derived from CDN/proxy headers.
type Geo struct {
	Country string `json:"country,omitempty"`
	Region  string `json:"region,omitempty"`
	City    string `json:"city,omitempty"`
}

// AnalyticsEvent mirrors the append-only `vendoranalytics` table.
type AnalyticsEvent struct {
	ID        uint64            // vendoranalytics.id
	VendorID  uint64            // vendoranalytics.vendor_id
	EventType EventType         // vendoranalytics.event_type
	SessionID string            // vendoranalytics.session_id
	Source    EventSource       // vendoranalytics.source (JSON)
	Device    Device            // vendoranalytics.device (JSON)
	Geo       Geo               // vendoranalytics.geo (JSON)
	Metadata  map[string]string // vendoranalytics.metadata (JSON)
	Timestamp time.Time         // vendoranalytics.ts
}

// AIReferral records a buyer landing on a vendor via an AI-assistant answer.
// Append-only; retained indefinitely.
type AIReferral struct {
	ID        uint64    // aireferrals.id
	VendorID  uint64    // aireferrals.vendor_id
	Assistant string    // aireferrals.assistant (e.g. "chatgpt")
	Query     string    // aireferrals.query
	SessionID string    // aireferrals.session_id
	Timestamp time.Time // aireferrals.ts
}

// OutreachLog records an outbound contact attempt to a vendor. Append-only.
type OutreachLog struct {
	ID        uint64    // outreachlogs.id
	VendorID  uint64    // outreachlogs.vendor_id
	Channel   string    // outreachlogs.channel (email, phone)
	Subject   string    // outreachlogs.subject
	Outcome   string    // outreachlogs.outcome
	Timestamp time.Time // outreachlogs.ts
}
