package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spendguard/spendguard/internal/policy"
)

func sampleSummary(finished time.Time) *Summary {
	return &Summary{
		RunID:      "run-1",
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Total:      3,
		Passed:     2,
		Failed:     1,
		PerCategory: map[string]CategoryStats{
			"Limits":   {Total: 2, Passed: 1, Failed: 1},
			"Baseline": {Total: 1, Passed: 1},
		},
		FailingTests: []int{7},
		Results: []Result{
			{Case: TestCase{TestNumber: 7, Category: "Limits", ImageRef: "img-7",
				Expected: ExpectedVerdict{Status: policy.StatusApproved}},
				Actual: &policy.Verdict{Status: policy.StatusFlagged,
					Reasons: []policy.Reason{{Code: policy.ReasonOverLimit, Severity: policy.SeveritySoft}}}},
		},
	}
}

func TestWriteArtifacts_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	finished := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	paths, err := WriteArtifacts(dir, sampleSummary(finished))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "test_results_20250314_093000.json"), paths.Results)
	assert.Equal(t, filepath.Join(dir, "test_summary_20250314_093000.txt"), paths.Summary)

	loaded, err := LoadSummary(paths.Results)
	require.NoError(t, err)
	assert.Equal(t, "run-1", loaded.RunID)
	assert.Equal(t, 3, loaded.Total)
	assert.Equal(t, []int{7}, loaded.FailingTests)
	require.Len(t, loaded.Results, 1)
	require.NotNil(t, loaded.Results[0].Actual)
	assert.Equal(t, policy.StatusFlagged, loaded.Results[0].Actual.Status)
}

func TestLatestResults_UsesPointer(t *testing.T) {
	dir := t.TempDir()

	older := sampleSummary(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
	_, err := WriteArtifacts(dir, older)
	require.NoError(t, err)

	newer := sampleSummary(time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC))
	newerPaths, err := WriteArtifacts(dir, newer)
	require.NoError(t, err)

	latest, err := LatestResults(dir)
	require.NoError(t, err)
	assert.Equal(t, newerPaths.Results, latest)
}

func TestLatestResults_FallbackToFilenameOrder(t *testing.T) {
	dir := t.TempDir()

	for _, ts := range []time.Time{
		time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 13, 23, 59, 59, 0, time.UTC),
	} {
		_, err := WriteArtifacts(dir, sampleSummary(ts))
		require.NoError(t, err)
	}
	// drop the pointer to exercise the fallback
	require.NoError(t, os.Remove(filepath.Join(dir, "latest.json")))

	latest, err := LatestResults(dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(latest, "test_results_20250314_100000.json"), latest)
}

func TestLatestResults_EmptyDir(t *testing.T) {
	_, err := LatestResults(t.TempDir())
	require.Error(t, err)
}

func TestFormatSummary(t *testing.T) {
	out := FormatSummary(sampleSummary(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)))
	assert.Contains(t, out, "Total Tests: 3")
	assert.Contains(t, out, "Passed: 2 (66.7%)")
	assert.Contains(t, out, "Limits: 1/2 passed")
	assert.Contains(t, out, "FAILING TESTS: [7]")
}
