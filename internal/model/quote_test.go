package model

import "testing"

func TestQuoteStatusCanTransition(t *testing.T) {
	all := []QuoteStatus{QuotePending, QuoteMatched, QuoteAccepted, QuoteCompleted, QuoteDeclined}
	allowed := map[QuoteStatus]map[QuoteStatus]bool{
		QuotePending:  {QuoteMatched: true, QuoteDeclined: true},
		QuoteMatched:  {QuoteAccepted: true, QuotePending: true, QuoteDeclined: true},
		QuoteAccepted: {QuoteCompleted: true, QuoteDeclined: true},
		// completed and declined are terminal
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestQuoteStatusValid(t *testing.T) {
	for _, s := range []QuoteStatus{QuotePending, QuoteMatched, QuoteAccepted, QuoteCompleted, QuoteDeclined} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if QuoteStatus("cancelled").Valid() {
		t.Error("unknown status accepted")
	}
}

func TestMonthlyVolumeEffective(t *testing.T) {
	cases := []struct {
		name string
		vol  MonthlyVolume
		want int
	}{
		{"total wins", MonthlyVolume{Total: 5000, Mono: 1, Colour: 1}, 5000},
		{"mono plus colour", MonthlyVolume{Mono: 3000, Colour: 2000}, 5000},
		{"zero", MonthlyVolume{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.vol.Effective(); got != tc.want {
				t.Errorf("Effective() = %d, want %d", got, tc.want)
			}
		})
	}
}
