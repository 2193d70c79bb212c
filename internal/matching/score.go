package matching

import (
	"math"
	"strings"

	"github.com/procurehub/marketplace-api/internal/model"
)

// scored is one vendor-product soft score with the sub-scores that drove it.
type scored struct {
	Score   float64
	Reasons []string
}

// reasonFloor is the sub-score a criterion must reach to be reported as a
// dominating reason.
const reasonFloor = 0.8

// score computes the weighted soft score for one product. Every sub-score is
// in [0,1]; an absent requirement scores 1.0 (nothing to violate).
func (e *Engine) score(q model.QuoteRequest, v *model.Vendor, p *model.VendorProduct) scored {
	w := e.cfg.Weights
	var reasons []string

	volume := volumeFit(q, p)
	if volume >= reasonFloor && q.MonthlyVolume != nil {
		reasons = append(reasons, "volume in product range")
	}
	price := e.priceFit(q, p)
	if price >= reasonFloor && q.MaxLeasePrice > 0 {
		reasons = append(reasons, "well within budget")
	}
	speed := speedFit(q, p)
	if speed >= reasonFloor && q.MinSpeed > 0 {
		reasons = append(reasons, "exceeds speed requirement")
	}
	colour := colourFit(q, p)
	if colour >= reasonFloor && q.Colour != model.ColourAny {
		reasons = append(reasons, "matches colour preference")
	}
	coverage := coverageFit(q, v)
	if coverage >= reasonFloor && q.Location != "" {
		reasons = append(reasons, "covers location")
	}
	tier := v.Tier.Rank()
	if tier >= reasonFloor {
		reasons = append(reasons, "premium tier")
	}
	rating := clamp01(v.Rating.Average / 5)
	if rating >= reasonFloor && v.Rating.Count > 0 {
		reasons = append(reasons, "highly rated")
	}

	total := w.Volume*volume + w.Price*price + w.Speed*speed +
		w.Colour*colour + w.Coverage*coverage + w.Tier*tier + w.Rating*rating
	return scored{Score: clamp01(total), Reasons: reasons}
}

// volumeFit is Gaussian-shaped around the midpoint of the product's rated
// range: 1.0 at the midpoint, falling off toward the edges.
func volumeFit(q model.QuoteRequest, p *model.VendorProduct) float64 {
	if q.MonthlyVolume == nil {
		return 1.0
	}
	vol := float64(q.MonthlyVolume.Effective())
	mid := float64(p.Volume.Min+p.Volume.Max) / 2
	sigma := float64(p.Volume.Max-p.Volume.Min) / 4
	if sigma <= 0 {
		sigma = 1
	}
	d := (vol - mid) / sigma
	return math.Exp(-0.5 * d * d)
}

// priceFit grows monotonically with the margin between budget and amortized
// monthly cost: 0.5 at zero margin, 1.0 once the margin reaches half the
// budget.
func (e *Engine) priceFit(q model.QuoteRequest, p *model.VendorProduct) float64 {
	if q.MaxLeasePrice <= 0 {
		return 1.0
	}
	margin := (q.MaxLeasePrice - e.monthlyCost(p)) / q.MaxLeasePrice
	if margin < 0 {
		return 0
	}
	return clamp01(0.5 + margin)
}

// speedFit is linear from the minimum requirement up to twice it, capped.
func speedFit(q model.QuoteRequest, p *model.VendorProduct) float64 {
	if q.MinSpeed <= 0 {
		return 1.0
	}
	return clamp01(float64(p.Speed) / float64(2*q.MinSpeed))
}

// colourFit is an exact categorical match. A colour machine asked for mono
// output still works, so it scores half rather than zero.
func colourFit(q model.QuoteRequest, p *model.VendorProduct) float64 {
	switch q.Colour {
	case model.ColourFull:
		if p.Colour {
			return 1.0
		}
		return 0
	case model.ColourMono:
		if !p.Colour {
			return 1.0
		}
		return 0.5
	}
	return 1.0
}

// coverageFit checks the vendor's regions and postcode prefixes against the
// request location. Nationwide vendors always fit.
func coverageFit(q model.QuoteRequest, v *model.Vendor) float64 {
	if q.Location == "" || v.Nationwide {
		return 1.0
	}
	loc := strings.ToLower(strings.TrimSpace(q.Location))
	for _, region := range v.Regions {
		r := strings.ToLower(region)
		if strings.Contains(loc, r) || strings.Contains(r, loc) {
			return 1.0
		}
	}
	compact := strings.ToUpper(strings.ReplaceAll(loc, " ", ""))
	for _, prefix := range v.Postcodes {
		p := strings.ToUpper(strings.ReplaceAll(prefix, " ", ""))
		if p != "" && strings.HasPrefix(compact, p) {
			return 1.0
		}
	}
	return 0
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
