// Package insights post-processes persisted harness runs into a summary of
// weak spots and improvement recommendations. It never re-runs tests.
package insights

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spendguard/spendguard/internal/harness"
)

// CategoryInsight scores one catalogue category.
type CategoryInsight struct {
	Category       string  `json:"category"`
	Total          int     `json:"total"`
	Passed         int     `json:"passed"`
	Failed         int     `json:"failed"`
	Errors         int     `json:"errors"`
	PassRate       float64 `json:"pass_rate"`
	NeedsAttention bool    `json:"needs_attention"`
}

// FailureDiff is the expected-vs-actual verdict difference for one
// failing test.
type FailureDiff struct {
	TestNumber      int      `json:"test_number"`
	Category        string   `json:"category"`
	Description     string   `json:"description,omitempty"`
	ExpectedStatus  string   `json:"expected_status"`
	ActualStatus    string   `json:"actual_status"`
	ExpectedReasons []string `json:"expected_reasons"`
	ActualReasons   []string `json:"actual_reasons"`
}

// CaseError is a test case that never produced a verdict.
type CaseError struct {
	TestNumber int    `json:"test_number"`
	Category   string `json:"category"`
	Message    string `json:"message"`
}

// Report is the analysis of one harness run.
type Report struct {
	RunID           string            `json:"run_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	Threshold       float64           `json:"threshold"`
	Categories      []CategoryInsight `json:"categories"`
	Failures        []FailureDiff     `json:"failures"`
	Errors          []CaseError       `json:"errors"`
	Recommendations []string          `json:"recommendations"`
}

// Analyze computes per-category pass rates against the attention
// threshold and collects verdict diffs for every failing case.
func Analyze(s *harness.Summary, threshold float64) *Report {
	r := &Report{
		RunID:       s.RunID,
		GeneratedAt: time.Now().UTC(),
		Threshold:   threshold,
	}

	for _, cat := range sortedKeys(s.PerCategory) {
		stats := s.PerCategory[cat]
		rate := 0.0
		if stats.Total > 0 {
			rate = float64(stats.Passed) / float64(stats.Total)
		}
		r.Categories = append(r.Categories, CategoryInsight{
			Category:       cat,
			Total:          stats.Total,
			Passed:         stats.Passed,
			Failed:         stats.Failed,
			Errors:         stats.Errors,
			PassRate:       rate,
			NeedsAttention: rate < threshold,
		})
	}

	for _, res := range s.Results {
		if res.Err != "" {
			r.Errors = append(r.Errors, CaseError{
				TestNumber: res.Case.TestNumber,
				Category:   res.Case.Category,
				Message:    res.Err,
			})
			continue
		}
		if res.Passed || res.Actual == nil {
			continue
		}
		r.Failures = append(r.Failures, FailureDiff{
			TestNumber:      res.Case.TestNumber,
			Category:        res.Case.Category,
			Description:     res.Case.Description,
			ExpectedStatus:  string(res.Case.Expected.Status),
			ActualStatus:    string(res.Actual.Status),
			ExpectedReasons: res.Case.Expected.ReasonCodes,
			ActualReasons:   res.Actual.ReasonCodes(),
		})
	}

	r.Recommendations = recommend(r)
	return r
}

// recommend derives one improvement line per weak category from the
// dominant failure mode observed there.
func recommend(r *Report) []string {
	var recs []string
	for _, ci := range r.Categories {
		if !ci.NeedsAttention {
			continue
		}
		if ci.Errors > ci.Failed {
			recs = append(recs, fmt.Sprintf(
				"%s: %d of %d cases errored before evaluation; check extraction reliability for this category",
				ci.Category, ci.Errors, ci.Total))
			continue
		}

		missing, extra := 0, 0
		for _, f := range r.Failures {
			if f.Category != ci.Category {
				continue
			}
			m, e := reasonDrift(f.ExpectedReasons, f.ActualReasons)
			missing += m
			extra += e
		}
		switch {
		case missing > extra:
			recs = append(recs, fmt.Sprintf(
				"%s: expected reason codes are not firing (%d missing); review rule thresholds for this category",
				ci.Category, missing))
		case extra > missing:
			recs = append(recs, fmt.Sprintf(
				"%s: rules are over-firing (%d unexpected reason codes); review rule precedence for this category",
				ci.Category, extra))
		default:
			recs = append(recs, fmt.Sprintf(
				"%s: pass rate %.0f%% below threshold %.0f%%; review expected verdicts against current policy",
				ci.Category, ci.PassRate*100, r.Threshold*100))
		}
	}
	return recs
}

// reasonDrift counts expected codes absent from actual and actual codes
// absent from expected.
func reasonDrift(expected, actual []string) (missing, extra int) {
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
	}
	got := make(map[string]bool, len(actual))
	for _, c := range actual {
		got[c] = true
	}
	for c := range want {
		if !got[c] {
			missing++
		}
	}
	for c := range got {
		if !want[c] {
			extra++
		}
	}
	return missing, extra
}

// Format renders the human-readable report.
func (r *Report) Format() string {
	var b strings.Builder
	line := strings.Repeat("=", 70)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "EXPENSE COMPLIANCE - INSIGHTS REPORT")
	fmt.Fprintf(&b, "Run: %s\n", r.RunID)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "CATEGORY PASS RATES (attention threshold %.0f%%):\n", r.Threshold*100)
	for _, ci := range r.Categories {
		marker := " "
		if ci.NeedsAttention {
			marker = "!"
		}
		fmt.Fprintf(&b, "  %s %s: %.0f%% (%d/%d", marker, ci.Category, ci.PassRate*100, ci.Passed, ci.Total)
		if ci.Errors > 0 {
			fmt.Fprintf(&b, ", %d errors", ci.Errors)
		}
		fmt.Fprintln(&b, ")")
	}

	if len(r.Failures) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "FAILING TESTS:")
		for _, f := range r.Failures {
			fmt.Fprintf(&b, "  #%d [%s] expected %s %v, got %s %v\n",
				f.TestNumber, f.Category, f.ExpectedStatus, f.ExpectedReasons, f.ActualStatus, f.ActualReasons)
		}
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "ERRORS:")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  #%d [%s] %s\n", e.TestNumber, e.Category, e.Message)
		}
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, "RECOMMENDATIONS:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}
	return b.String()
}

// WriteReport persists the report next to the run artifacts and returns
// its path.
func WriteReport(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating results dir: %w", err)
	}
	path := filepath.Join(dir, "insights_report_"+r.GeneratedAt.Format("20060102_150405")+".txt")
	if err := os.WriteFile(path, []byte(r.Format()), 0o644); err != nil {
		return "", fmt.Errorf("writing insights report: %w", err)
	}
	return path, nil
}

func sortedKeys(m map[string]harness.CategoryStats) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
