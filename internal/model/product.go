package model

import "time"

// VolumeRange is the monthly page volume a product is rated for.
type VolumeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// VendorProduct mirrors the `vendorproducts` table. Rows are loaded by an
// external import collaborator; the matching engine only reads them.
type VendorProduct struct {
	ID               uint64      // vendorproducts.id
	VendorID         uint64      // vendorproducts.vendor_id
	Manufacturer     string      // vendorproducts.manufacturer
	Model            string      // vendorproducts.model
	Speed            int         // vendorproducts.speed (pages per minute)
	Description      string      // vendorproducts.description
	TotalMachineCost float64     // vendorproducts.total_machine_cost (GBP)
	CostPerCopy      float64     // vendorproducts.cost_per_copy (GBP)
	Colour           bool        // vendorproducts.colour
	PaperSizes       []PaperSize // vendorproducts.paper_sizes (JSON)
	Volume           VolumeRange // vendorproducts.volume_min / volume_max
	Features         []string    // vendorproducts.features (JSON)
	CreatedAt        time.Time   // vendorproducts.created_at
}

// SupportsPaper reports whether the product handles the given paper size.
func (p *VendorProduct) SupportsPaper(size PaperSize) bool {
	for _, s := range p.PaperSizes {
		if s == size {
			return true
		}
	}
	return false
}

// HasFeatures reports whether every requested feature tag is present.
func (p *VendorProduct) HasFeatures(required []string) bool {
	for _, want := range required {
		found := false
		for _, f := range p.Features {
			if f == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
