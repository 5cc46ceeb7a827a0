package expense

import "testing"

func TestParseCategory(t *testing.T) {
	cases := map[string]Category{
		"Lodging":        CategoryLodging,
		"MEALS":          CategoryMeals,
		"alcohol":        CategoryAlcohol,
		"transportation": CategoryTransport,
		"travel":         CategoryTransport,
		"  supplies ":    CategorySupplies,
		"snacks":         CategoryOther,
		"":               CategoryOther,
	}
	for label, want := range cases {
		if got := ParseCategory(label); got != want {
			t.Errorf("ParseCategory(%q) = %q, want %q", label, got, want)
		}
	}
}

func TestDigest_Deterministic(t *testing.T) {
	score := 0.85
	f := ExtractedFields{
		Vendor:           "Hotel Mira",
		Amount:           412.50,
		Currency:         "USD",
		Category:         "lodging",
		Date:             "2025-03-14",
		LanguageDetected: "en",
		LegibilityScore:  &score,
	}
	a := Digest(f)
	b := Digest(f)
	if a != b {
		t.Fatalf("digest not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(a))
	}
}

func TestDigest_SensitiveToChanges(t *testing.T) {
	f := ExtractedFields{Vendor: "Cafe Uno", Amount: 12.00, Category: "meals"}
	base := Digest(f)

	f.Amount = 12.01
	if Digest(f) == base {
		t.Error("digest unchanged after amount change")
	}

	f.Amount = 12.00
	score := 0.0
	f.LegibilityScore = &score
	if Digest(f) == base {
		t.Error("digest unchanged after legibility change (nil vs 0.0 must differ)")
	}
}
