// Package matching implements the vendor-matching engine: it scores the live
// product catalog against a quote request and returns a ranked, capped list
// of candidate vendors. Scoring is pure; given the same catalog snapshot and
// request the output is deterministic.
package matching

import (
	"sort"

	"github.com/procurehub/marketplace-api/internal/model"
)

// Config holds the tunable parameters of a match pass.
type Config struct {
	Limit          int     // maximum matches returned (K)
	MinScore       float64 // minimum-viability floor (theta_min)
	LeaseTermMonth int     // months over which machine cost is amortized
	Weights        Weights
}

// Weights are the soft-score weights. They sum to 1.
type Weights struct {
	Volume   float64
	Price    float64
	Speed    float64
	Colour   float64
	Coverage float64
	Tier     float64
	Rating   float64
}

// DefaultConfig returns the production parameters.
func DefaultConfig() Config {
	return Config{
		Limit:          10,
		MinScore:       0.35,
		LeaseTermMonth: 36,
		Weights: Weights{
			Volume:   0.30,
			Price:    0.25,
			Speed:    0.15,
			Colour:   0.10,
			Coverage: 0.10,
			Tier:     0.05,
			Rating:   0.05,
		},
	}
}

// Candidate pairs a vendor with its catalog products for one scoring pass.
type Candidate struct {
	Vendor   model.Vendor
	Products []model.VendorProduct
}

// Engine scores candidates against quote requests.
type Engine struct {
	cfg Config
}

// NewEngine returns an engine with the given parameters, falling back to
// defaults for zero values.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Limit <= 0 {
		cfg.Limit = def.Limit
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = def.MinScore
	}
	if cfg.LeaseTermMonth <= 0 {
		cfg.LeaseTermMonth = def.LeaseTermMonth
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = def.Weights
	}
	return &Engine{cfg: cfg}
}

// Match scores every vendor's products against the request and returns at
// most Limit matches, score-descending. A vendor appears at most once,
// carried by its best product. Vendors scoring under MinScore are dropped.
//
// Ties break by tier (enterprise first), then rating, then the earlier-
// registered vendor id.
func (e *Engine) Match(q model.QuoteRequest, candidates []Candidate) []model.Match {
	type ranked struct {
		match  model.Match
		tier   float64
		rating float64
	}
	var results []ranked

	for _, c := range candidates {
		v := c.Vendor
		if v.Status != model.VendorActive || !v.CanReceiveQuotes() {
			continue
		}
		best, ok := e.bestProduct(q, &v, c.Products)
		if !ok || best.Score < e.cfg.MinScore {
			continue
		}
		results = append(results, ranked{
			match:  model.Match{VendorID: v.ID, Score: best.Score, Reasons: best.Reasons},
			tier:   v.Tier.Rank(),
			rating: v.Rating.Average,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.match.Score != b.match.Score {
			return a.match.Score > b.match.Score
		}
		if a.tier != b.tier {
			return a.tier > b.tier
		}
		if a.rating != b.rating {
			return a.rating > b.rating
		}
		return a.match.VendorID < b.match.VendorID
	})

	if len(results) > e.cfg.Limit {
		results = results[:e.cfg.Limit]
	}
	out := make([]model.Match, len(results))
	for i, r := range results {
		out[i] = r.match
	}
	return out
}

// bestProduct returns the highest-scoring viable product for a vendor.
func (e *Engine) bestProduct(q model.QuoteRequest, v *model.Vendor, products []model.VendorProduct) (scored, bool) {
	var (
		best  scored
		found bool
	)
	for i := range products {
		p := &products[i]
		if !e.passesHardFilters(q, p) {
			continue
		}
		s := e.score(q, v, p)
		if !found || s.Score > best.Score {
			best = s
			found = true
		}
	}
	return best, found
}

// passesHardFilters applies the knock-out criteria: an absent requirement
// never filters.
func (e *Engine) passesHardFilters(q model.QuoteRequest, p *model.VendorProduct) bool {
	if q.Type != "" && !p.SupportsPaper(q.Type) {
		return false
	}
	if q.MinSpeed > 0 && p.Speed < q.MinSpeed {
		return false
	}
	if q.MaxLeasePrice > 0 && e.monthlyCost(p) > q.MaxLeasePrice {
		return false
	}
	if !p.HasFeatures(q.RequiredFunctions) {
		return false
	}
	if q.MonthlyVolume != nil {
		vol := q.MonthlyVolume.Effective()
		if vol < p.Volume.Min || vol > p.Volume.Max {
			return false
		}
	}
	return true
}

func (e *Engine) monthlyCost(p *model.VendorProduct) float64 {
	return p.TotalMachineCost / float64(e.cfg.LeaseTermMonth)
}
