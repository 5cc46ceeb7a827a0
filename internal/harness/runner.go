package harness

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spendguard/spendguard/internal/extract"
	"github.com/spendguard/spendguard/internal/policy"
)

// Filter narrows which catalogue cases a run evaluates. TestNumber wins
// over Category, which wins over Limit.
type Filter struct {
	TestNumber int
	Category   string
	Limit      int
}

// Result is the outcome of one test case.
type Result struct {
	Case      TestCase        `json:"test_case"`
	Actual    *policy.Verdict `json:"actual_verdict,omitempty"`
	Passed    bool            `json:"passed"`
	LatencyMS int64           `json:"latency_ms"`
	Err       string          `json:"error,omitempty"`
}

// CategoryStats aggregates outcomes for one catalogue category.
type CategoryStats struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Errors int `json:"errors"`
}

// Summary aggregates one harness run. It is written to a timestamped
// artifact and never merged with other runs.
type Summary struct {
	RunID        string                   `json:"run_id"`
	StartedAt    time.Time                `json:"started_at"`
	FinishedAt   time.Time                `json:"finished_at"`
	Total        int                      `json:"total"`
	Passed       int                      `json:"passed"`
	Failed       int                      `json:"failed"`
	Errored      int                      `json:"errored"`
	PerCategory  map[string]CategoryStats `json:"per_category"`
	FailingTests []int                    `json:"failing_tests"`
	Results      []Result                 `json:"results"`
}

// Runner executes catalogue cases sequentially. Sequential execution is
// deliberate: the extraction agent is rate-limited, and audit ordering must
// reflect evaluation order.
type Runner struct {
	extractor extract.Extractor
	evaluator *policy.Evaluator
	logger    *slog.Logger

	// Delay is the minimum pause between extraction calls when driving
	// the live agent. Zero for fixtures.
	Delay time.Duration
	// Timeout bounds each extraction call.
	Timeout time.Duration

	sleep func(time.Duration)
}

// NewRunner creates a runner with the documented 1s inter-call delay and a
// 30s per-call timeout; callers adjust both for offline runs.
func NewRunner(extractor extract.Extractor, evaluator *policy.Evaluator, logger *slog.Logger) *Runner {
	return &Runner{
		extractor: extractor,
		evaluator: evaluator,
		logger:    logger,
		Delay:     time.Second,
		Timeout:   30 * time.Second,
		sleep:     time.Sleep,
	}
}

// Select applies the filter to the catalogue, preserving catalogue order.
func Select(cases []TestCase, f Filter) []TestCase {
	if f.TestNumber > 0 {
		for _, tc := range cases {
			if tc.TestNumber == f.TestNumber {
				return []TestCase{tc}
			}
		}
		return nil
	}
	if f.Category != "" {
		var out []TestCase
		for _, tc := range cases {
			if strings.EqualFold(tc.Category, f.Category) {
				out = append(out, tc)
			}
		}
		return out
	}
	if f.Limit > 0 && f.Limit < len(cases) {
		return cases[:f.Limit]
	}
	return cases
}

// Run evaluates the selected cases. A failure obtaining fields or an
// evaluation error for one case is captured in its result and the run
// continues; only context cancellation stops the batch early.
func (r *Runner) Run(ctx context.Context, cases []TestCase, f Filter) (*Summary, error) {
	selected := Select(cases, f)

	summary := &Summary{
		RunID:       uuid.New().String(),
		StartedAt:   time.Now().UTC(),
		PerCategory: make(map[string]CategoryStats),
	}

	for i, tc := range selected {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = time.Now().UTC()
			return summary, err
		}
		if i > 0 && r.Delay > 0 {
			r.sleep(r.Delay)
		}

		res := r.runCase(ctx, tc)
		summary.Results = append(summary.Results, res)
		summary.Total++

		stats := summary.PerCategory[tc.Category]
		stats.Total++
		switch {
		case res.Err != "":
			summary.Errored++
			stats.Errors++
		case res.Passed:
			summary.Passed++
			stats.Passed++
		default:
			summary.Failed++
			stats.Failed++
			summary.FailingTests = append(summary.FailingTests, tc.TestNumber)
		}
		summary.PerCategory[tc.Category] = stats

		r.logger.Info("test case finished",
			"test", tc.TestNumber,
			"category", tc.Category,
			"passed", res.Passed,
			"error", res.Err,
		)
	}

	summary.FinishedAt = time.Now().UTC()
	return summary, nil
}

func (r *Runner) runCase(ctx context.Context, tc TestCase) Result {
	start := time.Now()
	res := Result{Case: tc}

	cctx, cancel := context.WithTimeout(ctx, r.Timeout)
	fields, err := r.extractor.Extract(cctx, tc.ImageRef)
	cancel()
	if err != nil {
		res.Err = err.Error()
		res.LatencyMS = time.Since(start).Milliseconds()
		return res
	}

	verdict, err := r.evaluator.Evaluate(fields)
	if err != nil {
		res.Err = err.Error()
		res.LatencyMS = time.Since(start).Milliseconds()
		return res
	}

	res.Actual = &verdict
	res.Passed = verdictsMatch(tc.Expected, verdict)
	res.LatencyMS = time.Since(start).Milliseconds()
	return res
}

// verdictsMatch compares status exactly and reason codes as unordered
// sets: order differences are not failures, membership differences are.
func verdictsMatch(expected ExpectedVerdict, actual policy.Verdict) bool {
	if expected.Status != actual.Status {
		return false
	}
	want := make(map[string]bool, len(expected.ReasonCodes))
	for _, code := range expected.ReasonCodes {
		want[code] = true
	}
	got := make(map[string]bool, len(actual.Reasons))
	for _, reason := range actual.Reasons {
		got[string(reason.Code)] = true
	}
	if len(want) != len(got) {
		return false
	}
	for code := range want {
		if !got[code] {
			return false
		}
	}
	return true
}
