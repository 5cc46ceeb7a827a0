// Package harness drives labeled edge-case documents through the policy
// evaluator and scores the results against expected verdicts.
package harness

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spendguard/spendguard/internal/policy"
)

// ExpectedVerdict is the labeled outcome for a test case. Reason codes are
// compared as an unordered set.
type ExpectedVerdict struct {
	Status      policy.Status `json:"status"`
	ReasonCodes []string      `json:"reason_codes,omitempty"`
}

// TestCase is one labeled edge-case document from the catalogue.
type TestCase struct {
	TestNumber  int             `json:"test_number"`
	Category    string          `json:"category"`
	ImageRef    string          `json:"image_ref"`
	Description string          `json:"description,omitempty"`
	Expected    ExpectedVerdict `json:"expected_verdict"`
}

// LoadCatalogue reads the edge-case catalogue. Order is preserved; it
// drives selection under a limit filter. Duplicate or non-positive test
// numbers fail the load, before anything runs.
func LoadCatalogue(path string) ([]TestCase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue: %w", err)
	}

	var cases []TestCase
	if err := json.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing catalogue: %w", err)
	}

	seen := make(map[int]bool, len(cases))
	for i, tc := range cases {
		if tc.TestNumber <= 0 {
			return nil, fmt.Errorf("catalogue entry %d: test_number must be positive, got %d", i, tc.TestNumber)
		}
		if seen[tc.TestNumber] {
			return nil, fmt.Errorf("catalogue entry %d: duplicate test_number %d", i, tc.TestNumber)
		}
		seen[tc.TestNumber] = true
		if tc.ImageRef == "" {
			return nil, fmt.Errorf("test #%d: missing image_ref", tc.TestNumber)
		}
		switch tc.Expected.Status {
		case policy.StatusApproved, policy.StatusRejected, policy.StatusFlagged:
		default:
			return nil, fmt.Errorf("test #%d: unknown expected status %q", tc.TestNumber, tc.Expected.Status)
		}
	}
	return cases, nil
}
