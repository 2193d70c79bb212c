package ai

import "testing"

func TestParseSuggestionsSeparatorLines(t *testing.T) {
	raw := "1. Canon XYZ — fast\n2. HP ABC — cheap\n3. Xerox QRS — quiet"
	got := ParseSuggestions(raw)

	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d", len(got))
	}
	want := []Suggestion{
		{Model: "Canon XYZ", Description: "fast"},
		{Model: "HP ABC", Description: "cheap"},
		{Model: "Xerox QRS", Description: "quiet"},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("suggestion %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseSuggestionsHyphenAndBrackets(t *testing.T) {
	raw := "[Ricoh MP C3004] - [Reliable A3 colour machine for mid-volume offices]"
	got := ParseSuggestions(raw)

	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Model != "Ricoh MP C3004" {
		t.Errorf("model = %q", got[0].Model)
	}
	if got[0].Description != "Reliable A3 colour machine for mid-volume offices" {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestParseSuggestionsNumberedWithoutSeparator(t *testing.T) {
	raw := "1. Konica Minolta bizhub C300i\n2. Sharp MX-3071"
	got := ParseSuggestions(raw)

	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].Model != "Konica Minolta bizhub C300i" {
		t.Errorf("model = %q", got[0].Model)
	}
	if got[0].Description != genericDescription {
		t.Errorf("description = %q", got[0].Description)
	}
}

func TestParseSuggestionsProseFallback(t *testing.T) {
	raw := "Here are some options:\nCanon XYZ\nHP ABC"
	got := ParseSuggestions(raw)

	if len(got) != 2 {
		t.Fatalf("expected 2 suggestions, got %d", len(got))
	}
	if got[0].Model != "Suggested model 1" || got[0].Description != "Canon XYZ" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Model != "Suggested model 2" || got[1].Description != "HP ABC" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestParseSuggestionsEmptyInput(t *testing.T) {
	got := ParseSuggestions("")
	if len(got) != 1 {
		t.Fatalf("expected single fallback entry, got %d", len(got))
	}
	if got[0] != fallbackSuggestion {
		t.Errorf("got %+v, want fallback", got[0])
	}
}

func TestParseSuggestionsTrimsToThree(t *testing.T) {
	raw := "A1 - one\nB2 - two\nC3 - three\nD4 - four\nE5 - five"
	got := ParseSuggestions(raw)
	if len(got) != 3 {
		t.Fatalf("expected cap at 3, got %d", len(got))
	}
}

func TestParseSuggestionsKeepsUnspacedHyphenModels(t *testing.T) {
	raw := "Sharp MX-3071 — compact A3 device"
	got := ParseSuggestions(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(got))
	}
	if got[0].Model != "Sharp MX-3071" {
		t.Errorf("hyphenated model split incorrectly: %q", got[0].Model)
	}
}
