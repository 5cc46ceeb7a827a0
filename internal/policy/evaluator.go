// Package policy maps extracted expense fields to a compliance verdict
// under an immutable policy configuration.
package policy

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/spendguard/spendguard/internal/config"
	"github.com/spendguard/spendguard/internal/expense"
)

// Evaluator applies the spending-policy rules to extracted fields. It holds
// no mutable state and is safe for concurrent use.
type Evaluator struct {
	policy     config.PolicyConfig
	version    string
	allowed    []language.Base
	prohibited map[expense.Category]bool
	now        func() time.Time
}

// NewEvaluator creates an evaluator from the config. The config must have
// been validated; the evaluator never re-checks it.
func NewEvaluator(cfg *config.Config) *Evaluator {
	e := &Evaluator{
		policy:     cfg.Policy,
		version:    cfg.PolicyVersion(),
		prohibited: make(map[expense.Category]bool, len(cfg.Policy.ProhibitedCategories)),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, cat := range cfg.Policy.ProhibitedCategories {
		e.prohibited[expense.ParseCategory(cat)] = true
	}
	for _, code := range cfg.Policy.AllowedLanguages {
		tag, err := language.Parse(code)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		e.allowed = append(e.allowed, base)
	}
	return e
}

// Version returns the policy version stamped on every verdict.
func (e *Evaluator) Version() string {
	return e.version
}

// Evaluate maps fields to a verdict. Deterministic and side-effect-free:
// rules run in fixed precedence (legibility, language, prohibited category,
// spending limit) and every hard rule is checked even after one has fired,
// so the reasons reflect all simultaneous hard violations. Soft findings
// are dropped once a hard rule has decided the outcome.
//
// Missing optional fields use conservative defaults (absent legibility is
// 0.0 and fails). Only a record with no category at all is invalid input.
func (e *Evaluator) Evaluate(fields expense.ExtractedFields) (Verdict, error) {
	if strings.TrimSpace(fields.Category) == "" {
		return Verdict{}, fmt.Errorf("%w: no category", expense.ErrInvalidInput)
	}
	cat := expense.ParseCategory(fields.Category)

	var reasons []Reason

	legibility := 0.0
	if fields.LegibilityScore != nil {
		legibility = *fields.LegibilityScore
	}
	if legibility < e.policy.MinLegibility {
		reasons = append(reasons, Reason{
			Code:     ReasonIllegible,
			Severity: SeverityHard,
			Detail:   fmt.Sprintf("legibility %.2f below minimum %.2f", legibility, e.policy.MinLegibility),
		})
	}

	if !e.languageAllowed(fields.LanguageDetected) {
		reasons = append(reasons, Reason{
			Code:     ReasonUnsupportedLanguage,
			Severity: SeverityHard,
			Detail:   fmt.Sprintf("detected language %q not in allow-list", fields.LanguageDetected),
		})
	}

	if e.prohibited[cat] {
		reasons = append(reasons, Reason{
			Code:     ReasonProhibitedCategory,
			Severity: SeverityHard,
			Detail:   fmt.Sprintf("category %s is prohibited", cat),
		})
	}

	limit := e.limitFor(cat)
	if fields.Amount > limit {
		severity := SeveritySoft
		if fields.Amount > limit*e.policy.HardOverageMultiplier {
			severity = SeverityHard
		}
		// A merely soft overage adds nothing once a hard rule has
		// decided the outcome; a hard overage is a simultaneous
		// violation and is always recorded.
		if severity == SeverityHard || !hasHard(reasons) {
			reasons = append(reasons, Reason{
				Code:     ReasonOverLimit,
				Severity: severity,
				Detail:   fmt.Sprintf("amount %.2f exceeds %s limit %.2f", fields.Amount, cat, limit),
			})
		}
	}

	return Verdict{
		Status:        statusFor(reasons),
		Reasons:       reasons,
		EvaluatedAt:   e.now(),
		PolicyVersion: e.version,
	}, nil
}

func hasHard(reasons []Reason) bool {
	for _, r := range reasons {
		if r.Severity == SeverityHard {
			return true
		}
	}
	return false
}

// limitFor returns the spending limit for a category, falling back to the
// permissive default for categories without a declared limit.
func (e *Evaluator) limitFor(cat expense.Category) float64 {
	if limit, ok := e.policy.Limits[string(cat)]; ok {
		return limit
	}
	return e.policy.DefaultLimit
}

// languageAllowed matches the detected code against the allow-list by base
// language, so a regional variant like en-US passes an "en" entry.
// Unparseable or empty codes never match.
func (e *Evaluator) languageAllowed(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	for _, b := range e.allowed {
		if b == base {
			return true
		}
	}
	return false
}
