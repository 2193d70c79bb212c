package model

import "time"

// Tier is a vendor's subscription level. Ordering matters: higher tiers win
// tie-breaks in matching and only paying tiers receive quote requests.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierStandard   Tier = "standard"
	TierManaged    Tier = "managed"
	TierEnterprise Tier = "enterprise"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierFree, TierBasic, TierStandard, TierManaged, TierEnterprise:
		return true
	}
	return false
}

// Rank maps tiers onto [0,1] for scoring and tie-breaking:
// free 0.0, basic 0.25, standard 0.5, managed 0.75, enterprise 1.0.
func (t Tier) Rank() float64 {
	switch t {
	case TierBasic:
		return 0.25
	case TierStandard:
		return 0.5
	case TierManaged:
		return 0.75
	case TierEnterprise:
		return 1.0
	}
	return 0.0
}

// VendorStatus is a vendor account's lifecycle state.
type VendorStatus string

const (
	VendorPending   VendorStatus = "pending"
	VendorActive    VendorStatus = "active"
	VendorSuspended VendorStatus = "suspended"
)

// ServiceTag is the closed enumeration of services a vendor may offer.
type ServiceTag string

const (
	ServicePhotocopiers ServiceTag = "Photocopiers"
	ServiceTelecoms     ServiceTag = "Telecoms"
	ServiceCCTV         ServiceTag = "CCTV"
	ServiceIT           ServiceTag = "IT"
	ServiceSecurity     ServiceTag = "Security"
	ServiceSoftware     ServiceTag = "Software"
)

// Valid reports whether s is a known service tag.
func (s ServiceTag) Valid() bool {
	switch s {
	case ServicePhotocopiers, ServiceTelecoms, ServiceCCTV, ServiceIT, ServiceSecurity, ServiceSoftware:
		return true
	}
	return false
}

// Rating holds a vendor's running review average.
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Vendor mirrors the `vendors` table. Set-valued fields (services, regions,
// postcodes) are persisted as JSON columns.
type Vendor struct {
	ID           uint64       // vendors.id
	Email        string       // vendors.email (unique, lowercase)
	Slug         string       // vendors.slug (URL-safe)
	Company      string       // vendors.company
	Phone        string       // vendors.phone
	Website      string       // vendors.website
	Services     []ServiceTag // vendors.services (JSON)
	Description  string       // vendors.description
	Regions      []string     // vendors.regions (JSON)
	Postcodes    []string     // vendors.postcodes (JSON, prefix strings)
	Nationwide   bool         // vendors.nationwide
	City         string       // vendors.city
	County       string       // vendors.county
	Postcode     string       // vendors.postcode
	Tier         Tier         // vendors.tier
	Status       VendorStatus // vendors.status
	ShowPricing  bool         // vendors.show_pricing
	Rating       Rating       // vendors.rating_avg / rating_count
	PasswordHash string       // vendors.password_hash (bcrypt)
	ResetHash    string       // vendors.reset_hash (sha256 of reset token, empty when unset)
	ResetExpires *time.Time   // vendors.reset_expires (nullable)
	CreatedAt    time.Time    // vendors.created_at
	UpdatedAt    *time.Time   // vendors.updated_at (nullable)
}

// CanReceiveQuotes reports whether the vendor is eligible to receive quote
// requests through API channels: any paying tier, or an explicit opt-in via
// the show_pricing flag.
func (v *Vendor) CanReceiveQuotes() bool {
	switch v.Tier {
	case TierBasic, TierStandard, TierManaged, TierEnterprise:
		return true
	}
	return v.ShowPricing
}
