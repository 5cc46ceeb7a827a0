// Package extract provides the capability boundary to the external
// image-extraction agent. The agent is a black box: callers depend on the
// Extractor interface and choose between the live HTTP client and the
// pre-recorded fixture implementation.
package extract

import (
	"context"

	"github.com/spendguard/spendguard/internal/expense"
)

// Extractor turns a document image reference into structured expense fields.
type Extractor interface {
	Extract(ctx context.Context, imageRef string) (expense.ExtractedFields, error)
}
