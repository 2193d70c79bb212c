// Package queue defines broker message payloads and the background consumer
// that turns quote.matched events into vendor-facing notifications.
package queue

import "time"

// QueueQuoteMatched is the durable queue carrying match notifications.
const QueueQuoteMatched = "quote.matched"

// MatchedVendor is one vendor entry inside a QuoteMatchedEvent, enough for a
// notification without querying the primary database.
type MatchedVendor struct {
	VendorID uint64  `json:"vendor_id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Score    float64 `json:"score"`
}

// QuoteMatchedEvent is published after a matching run stores its results.
// The consumer fans it out as one lead email per matched vendor.
type QuoteMatchedEvent struct {
	QuoteID     uint64          `json:"quote_id"`
	UserID      uint64          `json:"user_id"`
	UserCompany string          `json:"user_company"`
	Industry    string          `json:"industry"`
	MatchCount  int             `json:"match_count"`
	Vendors     []MatchedVendor `json:"vendors"`
	MatchedAt   time.Time       `json:"matched_at"`
}
