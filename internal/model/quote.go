package model

import "time"

// PaperSize is the closed enumeration of supported paper formats.
type PaperSize string

const (
	PaperA4      PaperSize = "A4"
	PaperA3      PaperSize = "A3"
	PaperLetter  PaperSize = "Letter"
	PaperLegal   PaperSize = "Legal"
	PaperTabloid PaperSize = "Tabloid"
)

// Valid reports whether s is a known paper size.
func (s PaperSize) Valid() bool {
	switch s {
	case PaperA4, PaperA3, PaperLetter, PaperLegal, PaperTabloid:
		return true
	}
	return false
}

// ColourPreference is a buyer's categorical colour requirement.
type ColourPreference string

const (
	ColourAny  ColourPreference = ""
	ColourFull ColourPreference = "colour"
	ColourMono ColourPreference = "mono"
)

// Valid reports whether c is a known colour preference (empty means no preference).
func (c ColourPreference) Valid() bool {
	return c == ColourAny || c == ColourFull || c == ColourMono
}

// QuoteStatus tracks a quote request through its lifecycle.
type QuoteStatus string

const (
	QuotePending   QuoteStatus = "pending"
	QuoteMatched   QuoteStatus = "matched"
	QuoteAccepted  QuoteStatus = "accepted"
	QuoteCompleted QuoteStatus = "completed"
	QuoteDeclined  QuoteStatus = "declined"
)

// Valid reports whether s is a known quote status.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuotePending, QuoteMatched, QuoteAccepted, QuoteCompleted, QuoteDeclined:
		return true
	}
	return false
}

// CanTransition encodes the quote state machine. Completed and declined are
// terminal; a matched quote may return to pending when a re-match is requested.
func (s QuoteStatus) CanTransition(to QuoteStatus) bool {
	switch s {
	case QuotePending:
		return to == QuoteMatched || to == QuoteDeclined
	case QuoteMatched:
		return to == QuoteAccepted || to == QuotePending || to == QuoteDeclined
	case QuoteAccepted:
		return to == QuoteCompleted || to == QuoteDeclined
	}
	return false
}

// MonthlyVolume is the buyer's stated page volume. When Total is zero the
// effective volume is Mono+Colour.
type MonthlyVolume struct {
	Total  int `json:"total"`
	Mono   int `json:"mono"`
	Colour int `json:"colour"`
}

// Effective returns the volume used by the matching engine.
func (v MonthlyVolume) Effective() int {
	if v.Total > 0 {
		return v.Total
	}
	return v.Mono + v.Colour
}

// Match is one ranked vendor candidate produced by the matching engine.
type Match struct {
	VendorID uint64   `json:"vendorId"`
	Score    float64  `json:"score"`
	Reasons  []string `json:"reasons"`
}

// QuoteRequest mirrors the `copierquoterequests` table. Matches and invoices
// are JSON columns; requirements are nullable where optional.
type QuoteRequest struct {
	ID                uint64           // copierquoterequests.id
	UserID            uint64           // copierquoterequests.user_id
	IndustryType      string           // copierquoterequests.industry_type
	MonthlyVolume     *MonthlyVolume   // copierquoterequests.volume_* (nullable)
	Type              PaperSize        // copierquoterequests.paper_type ("" = unspecified)
	MinSpeed          int              // copierquoterequests.min_speed (0 = unspecified)
	MaxLeasePrice     float64          // copierquoterequests.max_lease_price (0 = unspecified)
	RequiredFunctions []string         // copierquoterequests.required_functions (JSON)
	Colour            ColourPreference // copierquoterequests.colour_pref
	Location          string           // copierquoterequests.location
	Invoices          []string         // copierquoterequests.invoices (JSON, stored file paths)
	Matches           []Match          // copierquoterequests.matches (JSON, score-descending)
	Status            QuoteStatus      // copierquoterequests.status
	MatchedAt         *time.Time       // copierquoterequests.matched_at (nullable)
	CreatedAt         time.Time        // copierquoterequests.created_at
	UpdatedAt         time.Time        // copierquoterequests.updated_at
}
