package harness

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// timestampLayout sorts lexicographically in creation order.
const timestampLayout = "20060102_150405"

const latestIndex = "latest.json"

// Paths names the artifacts of one persisted run.
type Paths struct {
	Results string `json:"results_file"`
	Summary string `json:"summary_file"`
}

// WriteArtifacts persists a run: the full results as JSON, a human-readable
// summary, and the latest-run pointer. The pointer is the authoritative
// "latest" resolution; filename ordering is only a fallback.
func WriteArtifacts(dir string, s *Summary) (Paths, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("creating results dir: %w", err)
	}

	ts := s.FinishedAt.Format(timestampLayout)
	paths := Paths{
		Results: filepath.Join(dir, "test_results_"+ts+".json"),
		Summary: filepath.Join(dir, "test_summary_"+ts+".txt"),
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encoding results: %w", err)
	}
	if err := os.WriteFile(paths.Results, data, 0o644); err != nil {
		return Paths{}, fmt.Errorf("writing results: %w", err)
	}
	if err := os.WriteFile(paths.Summary, []byte(FormatSummary(s)), 0o644); err != nil {
		return Paths{}, fmt.Errorf("writing summary: %w", err)
	}

	index, err := json.MarshalIndent(paths, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("encoding latest index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, latestIndex), index, 0o644); err != nil {
		return Paths{}, fmt.Errorf("writing latest index: %w", err)
	}
	return paths, nil
}

// LoadSummary reads a persisted results artifact.
func LoadSummary(path string) (*Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading results: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing results: %w", err)
	}
	return &s, nil
}

// LatestResults resolves the most recent results artifact in dir, using
// the persisted pointer first and falling back to the lexicographically
// last test_results_*.json (timestamps embed in the name, so name order is
// creation order).
func LatestResults(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, latestIndex))
	if err == nil {
		var paths Paths
		if jerr := json.Unmarshal(data, &paths); jerr == nil && paths.Results != "" {
			if _, serr := os.Stat(paths.Results); serr == nil {
				return paths.Results, nil
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("reading results dir: %w", err)
	}
	var candidates []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "test_results_") && strings.HasSuffix(name, ".json") {
			candidates = append(candidates, name)
		}
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no results artifacts in %s", dir)
	}
	sort.Strings(candidates)
	return filepath.Join(dir, candidates[len(candidates)-1]), nil
}

// FormatSummary renders the human-readable pass/fail breakdown.
func FormatSummary(s *Summary) string {
	var b strings.Builder
	line := strings.Repeat("=", 70)

	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "EXPENSE COMPLIANCE - TEST SUMMARY")
	fmt.Fprintf(&b, "Run: %s\n", s.RunID)
	fmt.Fprintf(&b, "Started: %s   Finished: %s\n",
		s.StartedAt.Format("2006-01-02 15:04:05"), s.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "OVERALL RESULTS:")
	fmt.Fprintf(&b, "  Total Tests: %d\n", s.Total)
	fmt.Fprintf(&b, "  Passed: %d (%.1f%%)\n", s.Passed, percent(s.Passed, s.Total))
	fmt.Fprintf(&b, "  Failed: %d (%.1f%%)\n", s.Failed, percent(s.Failed, s.Total))
	fmt.Fprintf(&b, "  Errors: %d\n", s.Errored)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "RESULTS BY CATEGORY:")
	for _, cat := range sortedCategories(s.PerCategory) {
		stats := s.PerCategory[cat]
		fmt.Fprintf(&b, "  %s: %d/%d passed", cat, stats.Passed, stats.Total)
		if stats.Errors > 0 {
			fmt.Fprintf(&b, " (%d errors)", stats.Errors)
		}
		fmt.Fprintln(&b)
	}

	if len(s.FailingTests) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "FAILING TESTS: %v\n", s.FailingTests)
	}
	return b.String()
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func sortedCategories(m map[string]CategoryStats) []string {
	cats := make([]string, 0, len(m))
	for cat := range m {
		cats = append(cats, cat)
	}
	sort.Strings(cats)
	return cats
}
