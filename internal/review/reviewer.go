// Package review orchestrates one document submission: extraction,
// policy evaluation, and the audit append.
package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/spendguard/spendguard/internal/audit"
	"github.com/spendguard/spendguard/internal/expense"
	"github.com/spendguard/spendguard/internal/extract"
	"github.com/spendguard/spendguard/internal/metrics"
	"github.com/spendguard/spendguard/internal/policy"
)

// Reviewer is the submitDocument surface consumed by the UI collaborator.
// The evaluator is pure, so a single Reviewer serves concurrent
// submissions; the audit store serializes entry assignment internally.
type Reviewer struct {
	extractor extract.Extractor
	evaluator *policy.Evaluator
	store     *audit.Store
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewReviewer wires a reviewer. extractor may be nil when only
// SubmitFields is used; collector may be nil to skip metrics.
func NewReviewer(extractor extract.Extractor, evaluator *policy.Evaluator, store *audit.Store, collector *metrics.Collector, logger *slog.Logger) *Reviewer {
	return &Reviewer{
		extractor: extractor,
		evaluator: evaluator,
		store:     store,
		collector: collector,
		logger:    logger,
	}
}

// SubmitFields evaluates already-extracted fields and records the verdict.
// An empty documentRef gets a generated one. If the audit append fails the
// caller receives the error and no verdict: an unrecorded decision would
// break the audit guarantee.
func (r *Reviewer) SubmitFields(_ context.Context, documentRef string, fields expense.ExtractedFields) (policy.Verdict, audit.Entry, error) {
	if documentRef == "" {
		documentRef = uuid.New().String()
	}
	start := time.Now()

	verdict, err := r.evaluator.Evaluate(fields)
	if err != nil {
		return policy.Verdict{}, audit.Entry{}, fmt.Errorf("evaluating document %s: %w", documentRef, err)
	}

	entry, err := r.store.Record(documentRef, verdict, expense.Digest(fields))
	if err != nil {
		if r.collector != nil {
			r.collector.RecordAuditFailure()
		}
		return policy.Verdict{}, audit.Entry{}, fmt.Errorf("recording verdict for %s: %w", documentRef, err)
	}

	if r.collector != nil {
		r.collector.RecordEvaluation(string(verdict.Status), time.Since(start))
	}
	r.logger.Info("document evaluated",
		"document", documentRef,
		"status", verdict.Status,
		"reasons", verdict.ReasonCodes(),
		"entry_id", entry.EntryID,
	)
	return verdict, entry, nil
}

// SubmitImage extracts fields for an image reference and submits them. The
// image reference doubles as the document reference in the audit trail.
func (r *Reviewer) SubmitImage(ctx context.Context, imageRef string) (policy.Verdict, audit.Entry, error) {
	fields, err := r.extractor.Extract(ctx, imageRef)
	if err != nil {
		if r.collector != nil {
			r.collector.RecordExtractionError()
		}
		return policy.Verdict{}, audit.Entry{}, fmt.Errorf("extracting %s: %w", imageRef, err)
	}
	return r.SubmitFields(ctx, imageRef, fields)
}
