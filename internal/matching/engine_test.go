package matching

import (
	"reflect"
	"testing"

	"github.com/procurehub/marketplace-api/internal/model"
)

func copierProduct(vendorID uint64, speed int, totalCost float64) model.VendorProduct {
	return model.VendorProduct{
		VendorID:         vendorID,
		Manufacturer:     "Canon",
		Model:            "iR-ADV",
		Speed:            speed,
		TotalMachineCost: totalCost,
		Colour:           true,
		PaperSizes:       []model.PaperSize{model.PaperA4, model.PaperA3},
		Volume:           model.VolumeRange{Min: 2000, Max: 8000},
		Features:         []string{"print", "copy", "scan"},
	}
}

func activeVendor(id uint64, tier model.Tier) model.Vendor {
	return model.Vendor{
		ID:     id,
		Tier:   tier,
		Status: model.VendorActive,
	}
}

func TestMatchSuccessfulScenario(t *testing.T) {
	// V1 is a managed-tier London vendor with a product that satisfies every
	// requirement; V2 is free tier and must never be returned.
	v1 := activeVendor(1, model.TierManaged)
	v1.Regions = []string{"London"}
	v2 := activeVendor(2, model.TierFree)

	q := model.QuoteRequest{
		MonthlyVolume: &model.MonthlyVolume{Total: 5000},
		Type:          model.PaperA4,
		MinSpeed:      25,
		MaxLeasePrice: 350,
		RequiredFunctions: []string{"print", "scan"},
		Location:      "London",
	}
	engine := NewEngine(DefaultConfig())
	got := engine.Match(q, []Candidate{
		{Vendor: v1, Products: []model.VendorProduct{copierProduct(1, 30, 10800)}}, // 300/mo over 36 months
		{Vendor: v2, Products: []model.VendorProduct{copierProduct(2, 30, 10800)}},
	})

	if len(got) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(got))
	}
	if got[0].VendorID != 1 {
		t.Fatalf("expected vendor 1, got %d", got[0].VendorID)
	}
	if got[0].Score < 0.7 {
		t.Errorf("expected score >= 0.7, got %.3f", got[0].Score)
	}
	if len(got[0].Reasons) == 0 {
		t.Error("expected at least one reason")
	}
}

func TestMatchHardFilters(t *testing.T) {
	base := model.QuoteRequest{MonthlyVolume: &model.MonthlyVolume{Total: 5000}}
	cases := []struct {
		name    string
		mutate  func(*model.QuoteRequest, *model.VendorProduct)
		matched bool
	}{
		{"all pass", func(q *model.QuoteRequest, p *model.VendorProduct) {}, true},
		{"paper size unsupported", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.Type = model.PaperTabloid
		}, false},
		{"too slow", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.MinSpeed = 60
		}, false},
		{"over budget", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.MaxLeasePrice = 100
			p.TotalMachineCost = 10800 // 300/mo
		}, false},
		{"missing feature", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.RequiredFunctions = []string{"fax"}
		}, false},
		{"volume below range", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.MonthlyVolume = &model.MonthlyVolume{Total: 100}
		}, false},
		{"volume above range", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.MonthlyVolume = &model.MonthlyVolume{Total: 20000}
		}, false},
		{"mono plus colour when total absent", func(q *model.QuoteRequest, p *model.VendorProduct) {
			q.MonthlyVolume = &model.MonthlyVolume{Mono: 3000, Colour: 2000}
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := base
			p := copierProduct(1, 30, 3600)
			tc.mutate(&q, &p)
			engine := NewEngine(DefaultConfig())
			got := engine.Match(q, []Candidate{
				{Vendor: activeVendor(1, model.TierStandard), Products: []model.VendorProduct{p}},
			})
			if matched := len(got) == 1; matched != tc.matched {
				t.Errorf("matched = %v, want %v", matched, tc.matched)
			}
		})
	}
}

func TestMatchExcludesIneligibleVendors(t *testing.T) {
	q := model.QuoteRequest{}
	product := copierProduct(0, 30, 3600)

	suspended := activeVendor(1, model.TierEnterprise)
	suspended.Status = model.VendorSuspended
	free := activeVendor(2, model.TierFree)
	optedIn := activeVendor(3, model.TierFree)
	optedIn.ShowPricing = true

	engine := NewEngine(DefaultConfig())
	got := engine.Match(q, []Candidate{
		{Vendor: suspended, Products: []model.VendorProduct{product}},
		{Vendor: free, Products: []model.VendorProduct{product}},
		{Vendor: optedIn, Products: []model.VendorProduct{product}},
	})

	if len(got) != 1 || got[0].VendorID != 3 {
		t.Fatalf("expected only the show-pricing vendor, got %+v", got)
	}
}

func TestMatchTieBreakByTier(t *testing.T) {
	q := model.QuoteRequest{MonthlyVolume: &model.MonthlyVolume{Total: 5000}}
	managed := activeVendor(2, model.TierManaged)
	basic := activeVendor(1, model.TierBasic)

	engine := NewEngine(DefaultConfig())
	got := engine.Match(q, []Candidate{
		{Vendor: basic, Products: []model.VendorProduct{copierProduct(1, 30, 3600)}},
		{Vendor: managed, Products: []model.VendorProduct{copierProduct(2, 30, 3600)}},
	})

	if len(got) != 2 {
		t.Fatalf("expected two matches, got %d", len(got))
	}
	if got[0].VendorID != 2 {
		t.Errorf("expected managed vendor first, got vendor %d", got[0].VendorID)
	}
}

func TestMatchTieBreakByRatingThenID(t *testing.T) {
	q := model.QuoteRequest{}
	product := copierProduct(0, 30, 3600)

	rated := activeVendor(5, model.TierStandard)
	rated.Rating = model.Rating{Average: 4.5, Count: 12}
	unratedLate := activeVendor(9, model.TierStandard)
	unratedEarly := activeVendor(3, model.TierStandard)

	engine := NewEngine(DefaultConfig())
	got := engine.Match(q, []Candidate{
		{Vendor: unratedLate, Products: []model.VendorProduct{product}},
		{Vendor: rated, Products: []model.VendorProduct{product}},
		{Vendor: unratedEarly, Products: []model.VendorProduct{product}},
	})

	if len(got) != 3 {
		t.Fatalf("expected three matches, got %d", len(got))
	}
	if got[0].VendorID != 5 {
		t.Errorf("expected rated vendor first, got %d", got[0].VendorID)
	}
	if got[1].VendorID != 3 || got[2].VendorID != 9 {
		t.Errorf("expected id tie-break 3 before 9, got %d then %d", got[1].VendorID, got[2].VendorID)
	}
}

func TestMatchInvariants(t *testing.T) {
	q := model.QuoteRequest{
		MonthlyVolume: &model.MonthlyVolume{Total: 5000},
		MinSpeed:      20,
		MaxLeasePrice: 500,
		Location:      "Manchester",
	}
	var candidates []Candidate
	for i := uint64(1); i <= 25; i++ {
		tier := model.TierBasic
		if i%2 == 0 {
			tier = model.TierManaged
		}
		v := activeVendor(i, tier)
		v.Nationwide = i%3 == 0
		candidates = append(candidates, Candidate{
			Vendor:   v,
			Products: []model.VendorProduct{copierProduct(i, 25+int(i), 3600)},
		})
	}

	engine := NewEngine(DefaultConfig())
	got := engine.Match(q, candidates)

	if len(got) > 10 {
		t.Fatalf("result exceeds K: %d", len(got))
	}
	seen := make(map[uint64]bool)
	for _, m := range got {
		if seen[m.VendorID] {
			t.Errorf("vendor %d appears twice", m.VendorID)
		}
		seen[m.VendorID] = true
		if m.Score < 0.35 || m.Score > 1 {
			t.Errorf("score out of bounds: %.3f", m.Score)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("result not score-descending at %d", i)
		}
	}
}

func TestMatchDeterministic(t *testing.T) {
	q := model.QuoteRequest{
		MonthlyVolume: &model.MonthlyVolume{Total: 4000},
		MinSpeed:      20,
		Location:      "Leeds",
	}
	var candidates []Candidate
	for i := uint64(1); i <= 8; i++ {
		v := activeVendor(i, model.TierStandard)
		v.Regions = []string{"Leeds"}
		candidates = append(candidates, Candidate{
			Vendor:   v,
			Products: []model.VendorProduct{copierProduct(i, 20+int(i)*3, 3600)},
		})
	}

	engine := NewEngine(DefaultConfig())
	first := engine.Match(q, candidates)
	second := engine.Match(q, candidates)
	if !reflect.DeepEqual(first, second) {
		t.Error("match output is not deterministic")
	}
}

func TestMatchMinimumViabilityFloor(t *testing.T) {
	// A barely-qualifying pair: every sub-score near its minimum keeps the
	// vendor under the floor.
	q := model.QuoteRequest{
		MonthlyVolume: &model.MonthlyVolume{Total: 8000}, // edge of range
		MinSpeed:      30,                                // equality
		MaxLeasePrice: 100,                               // zero margin
		Colour:        model.ColourMono,                  // colour machine, mono ask
		Location:      "Edinburgh",                       // no coverage
	}
	v := activeVendor(1, model.TierFree)
	v.ShowPricing = true
	v.Regions = []string{"London"}
	p := copierProduct(1, 30, 3600) // 100/mo over 36 months

	engine := NewEngine(DefaultConfig())
	if got := engine.Match(q, []Candidate{{Vendor: v, Products: []model.VendorProduct{p}}}); len(got) != 0 {
		t.Fatalf("expected vendor below floor to be dropped, got %+v", got)
	}
}

func TestMatchBestProductPerVendor(t *testing.T) {
	q := model.QuoteRequest{MonthlyVolume: &model.MonthlyVolume{Total: 5000}, MinSpeed: 25}
	v := activeVendor(1, model.TierStandard)

	slow := copierProduct(1, 26, 3600)
	fast := copierProduct(1, 60, 3600)

	engine := NewEngine(DefaultConfig())
	withBoth := engine.Match(q, []Candidate{{Vendor: v, Products: []model.VendorProduct{slow, fast}}})
	withFast := engine.Match(q, []Candidate{{Vendor: v, Products: []model.VendorProduct{fast}}})

	if len(withBoth) != 1 || len(withFast) != 1 {
		t.Fatal("expected a single match in both passes")
	}
	if withBoth[0].Score != withFast[0].Score {
		t.Errorf("vendor score should come from its best product: %.3f vs %.3f",
			withBoth[0].Score, withFast[0].Score)
	}
}

func TestCoverageFit(t *testing.T) {
	cases := []struct {
		name     string
		vendor   model.Vendor
		location string
		want     float64
	}{
		{"nationwide", model.Vendor{Nationwide: true}, "anywhere", 1.0},
		{"region substring", model.Vendor{Regions: []string{"Greater London"}}, "london", 1.0},
		{"postcode prefix", model.Vendor{Postcodes: []string{"SW1"}}, "SW1A 2AA", 1.0},
		{"no match", model.Vendor{Regions: []string{"Kent"}}, "Glasgow", 0},
		{"empty location", model.Vendor{}, "", 1.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := model.QuoteRequest{Location: tc.location}
			if got := coverageFit(q, &tc.vendor); got != tc.want {
				t.Errorf("coverageFit = %.2f, want %.2f", got, tc.want)
			}
		})
	}
}
