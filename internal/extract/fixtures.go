package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spendguard/spendguard/internal/expense"
)

// Fixtures is a deterministic offline Extractor backed by pre-recorded
// agent output, keyed by image reference. It lets the harness and tests run
// without network access.
type Fixtures struct {
	fields map[string]expense.ExtractedFields
}

// LoadFixtures reads a JSON file mapping imageRef to extracted fields.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixtures: %w", err)
	}
	var fields map[string]expense.ExtractedFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("parsing fixtures: %w", err)
	}
	return &Fixtures{fields: fields}, nil
}

// NewFixtures builds an in-memory fixture set, mainly for tests.
func NewFixtures(fields map[string]expense.ExtractedFields) *Fixtures {
	return &Fixtures{fields: fields}
}

// Extract returns the pre-recorded fields for imageRef. An unknown ref is
// an error, standing in for an unreachable document on the live path.
func (f *Fixtures) Extract(_ context.Context, imageRef string) (expense.ExtractedFields, error) {
	fields, ok := f.fields[imageRef]
	if !ok {
		return expense.ExtractedFields{}, fmt.Errorf("no fixture for image %q", imageRef)
	}
	return fields, nil
}
