package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/spendguard/spendguard/internal/config"
	"github.com/spendguard/spendguard/internal/expense"
)

func newTestEvaluator(t *testing.T, mutate func(*config.Config)) *Evaluator {
	t.Helper()
	cfg := config.Defaults()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	e := NewEvaluator(cfg)
	e.now = func() time.Time { return time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC) }
	return e
}

func legible(score float64) *float64 { return &score }

func cleanFields() expense.ExtractedFields {
	return expense.ExtractedFields{
		Vendor:           "Hotel Mira",
		Amount:           120,
		Currency:         "USD",
		Category:         "lodging",
		Date:             "2025-03-10",
		LanguageDetected: "en",
		LegibilityScore:  legible(0.9),
	}
}

func TestEvaluate_Approved(t *testing.T) {
	e := newTestEvaluator(t, nil)
	v, err := e.Evaluate(cleanFields())
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Errorf("status = %q, want approved", v.Status)
	}
	if len(v.Reasons) != 0 {
		t.Errorf("approved verdict must carry no reasons, got %v", v.Reasons)
	}
}

// amount=500, lodging limit 400, multiplier 2: 500 < 800 stays soft.
func TestEvaluate_OverLimitSoft(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Amount = 500

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusFlagged {
		t.Errorf("status = %q, want flagged", v.Status)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonOverLimit {
		t.Fatalf("reasons = %v, want single over_limit", v.Reasons)
	}
	if v.Reasons[0].Severity != SeveritySoft {
		t.Errorf("severity = %q, want soft", v.Reasons[0].Severity)
	}
}

// amount=900, lodging limit 400, multiplier 2: 900 > 800 becomes hard.
func TestEvaluate_OverLimitHard(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Amount = 900

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonOverLimit {
		t.Fatalf("reasons = %v, want single over_limit", v.Reasons)
	}
	if v.Reasons[0].Severity != SeverityHard {
		t.Errorf("severity = %q, want hard", v.Reasons[0].Severity)
	}
}

func TestEvaluate_ProhibitedCategory(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Category = "alcohol"
	f.Amount = 5 // irrelevant: prohibition fires regardless of amount

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonProhibitedCategory {
		t.Fatalf("reasons = %v, want single prohibited_category", v.Reasons)
	}
}

// A soft overage on a prohibited receipt adds nothing: the hard rule has
// already decided the outcome, so the verdict carries only its reason.
func TestEvaluate_ProhibitedSuppressesSoftOverage(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Category = "alcohol"
	f.Amount = 1200 // over the 1000 fallback limit, under the 2x hard line

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonProhibitedCategory {
		t.Fatalf("reasons = %v, want single prohibited_category", v.Reasons)
	}
}

// A gross overage is itself a hard violation and stays recorded alongside
// other hard reasons.
func TestEvaluate_HardOverageRecordedWithOtherHardReasons(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Category = "alcohol"
	f.Amount = 2500 // past 2x the 1000 fallback limit

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	codes := v.ReasonCodes()
	if len(codes) != 2 || codes[0] != string(ReasonProhibitedCategory) || codes[1] != string(ReasonOverLimit) {
		t.Fatalf("reasons = %v, want [prohibited_category over_limit]", codes)
	}
	if v.Reasons[1].Severity != SeverityHard {
		t.Errorf("over_limit severity = %q, want hard", v.Reasons[1].Severity)
	}
}

func TestEvaluate_IllegibleSuppressesSoftOverage(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.LegibilityScore = legible(0.1)
	f.Amount = 500 // soft overage on the 400 lodging limit

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonIllegible {
		t.Fatalf("reasons = %v, want single illegible", v.Reasons)
	}
}

// Illegible AND unsupported language: both hard reasons must be present.
func TestEvaluate_MultipleHardReasons(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.LegibilityScore = legible(0.2)
	f.LanguageDetected = "fr"

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected", v.Status)
	}
	codes := v.ReasonCodes()
	if len(codes) != 2 {
		t.Fatalf("reasons = %v, want both illegible and unsupported_language", codes)
	}
	if codes[0] != string(ReasonIllegible) || codes[1] != string(ReasonUnsupportedLanguage) {
		t.Errorf("reason order = %v, want [illegible unsupported_language]", codes)
	}
}

func TestEvaluate_MissingLegibilityIsConservative(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.LegibilityScore = nil

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected (missing score treated as 0.0)", v.Status)
	}
	if len(v.Reasons) != 1 || v.Reasons[0].Code != ReasonIllegible {
		t.Fatalf("reasons = %v, want illegible", v.Reasons)
	}
}

func TestEvaluate_MissingCategoryIsInvalidInput(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Category = "   "

	_, err := e.Evaluate(f)
	if !errors.Is(err, expense.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestEvaluate_UnknownCategoryUsesDefaultLimit(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Category = "snacks" // maps to other, default limit 1000

	f.Amount = 950
	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Errorf("950 under default limit: status = %q, want approved", v.Status)
	}

	f.Amount = 1200
	v, err = e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusFlagged {
		t.Errorf("1200 over default limit: status = %q, want flagged", v.Status)
	}
}

func TestEvaluate_RegionalLanguageVariant(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.LanguageDetected = "en-US"

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusApproved {
		t.Errorf("en-US should pass an en allow-list, got %q", v.Status)
	}
}

func TestEvaluate_EmptyLanguageNotAllowed(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.LanguageDetected = ""

	v, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	if v.Status != StatusRejected {
		t.Errorf("status = %q, want rejected for missing language", v.Status)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := newTestEvaluator(t, nil)
	f := cleanFields()
	f.Amount = 900
	f.LanguageDetected = "fr"

	first, err := e.Evaluate(f)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		v, err := e.Evaluate(f)
		if err != nil {
			t.Fatal(err)
		}
		if v.Status != first.Status {
			t.Fatalf("status changed across evaluations: %q vs %q", v.Status, first.Status)
		}
		if len(v.Reasons) != len(first.Reasons) {
			t.Fatalf("reason count changed: %d vs %d", len(v.Reasons), len(first.Reasons))
		}
		for i := range v.Reasons {
			if v.Reasons[i] != first.Reasons[i] {
				t.Fatalf("reason %d changed: %+v vs %+v", i, v.Reasons[i], first.Reasons[i])
			}
		}
	}
}

func TestEvaluate_PolicyVersionStamped(t *testing.T) {
	e := newTestEvaluator(t, func(c *config.Config) { c.Version = "rev-7" })
	v, err := e.Evaluate(cleanFields())
	if err != nil {
		t.Fatal(err)
	}
	if v.PolicyVersion != "rev-7" {
		t.Errorf("policy version = %q, want rev-7", v.PolicyVersion)
	}
}

func TestStatusFor(t *testing.T) {
	if s := statusFor(nil); s != StatusApproved {
		t.Errorf("no reasons = %q, want approved", s)
	}
	soft := []Reason{{Code: ReasonOverLimit, Severity: SeveritySoft}}
	if s := statusFor(soft); s != StatusFlagged {
		t.Errorf("soft only = %q, want flagged", s)
	}
	mixed := append(soft, Reason{Code: ReasonIllegible, Severity: SeverityHard})
	if s := statusFor(mixed); s != StatusRejected {
		t.Errorf("any hard = %q, want rejected", s)
	}
}
