package policy

import "time"

// Status is the overall outcome of a compliance evaluation.
type Status string

const (
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusFlagged  Status = "flagged"
)

// Severity classifies how a fired rule affects the overall status. A single
// hard violation forces rejection; soft violations alone only flag.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// ReasonCode is a closed set of rule identifiers. New rules extend the set
// with new constants; reasons are never free-form strings.
type ReasonCode string

const (
	ReasonIllegible           ReasonCode = "illegible"
	ReasonUnsupportedLanguage ReasonCode = "unsupported_language"
	ReasonProhibitedCategory  ReasonCode = "prohibited_category"
	ReasonOverLimit           ReasonCode = "over_limit"
)

// Reason records one fired rule.
type Reason struct {
	Code     ReasonCode `json:"code"`
	Severity Severity   `json:"severity"`
	Detail   string     `json:"detail,omitempty"`
}

// Verdict is the output of one policy evaluation. Reasons is empty iff the
// status is approved.
type Verdict struct {
	Status        Status    `json:"status"`
	Reasons       []Reason  `json:"reasons,omitempty"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
	PolicyVersion string    `json:"policy_version"`
}

// ReasonCodes returns the fired rule codes in evaluation order.
func (v Verdict) ReasonCodes() []string {
	codes := make([]string, 0, len(v.Reasons))
	for _, r := range v.Reasons {
		codes = append(codes, string(r.Code))
	}
	return codes
}

// statusFor derives the overall status from the fired reasons: rejected if
// any hard violation is present, flagged if only soft ones are, approved
// when nothing fired.
func statusFor(reasons []Reason) Status {
	if len(reasons) == 0 {
		return StatusApproved
	}
	for _, r := range reasons {
		if r.Severity == SeverityHard {
			return StatusRejected
		}
	}
	return StatusFlagged
}
