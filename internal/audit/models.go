package audit

import "github.com/spendguard/spendguard/internal/policy"

// Entry is one immutable audit record. Entries are appended exactly once
// per evaluation, never mutated or deleted; EntryID is assigned
// sequentially with no gaps.
type Entry struct {
	EntryID       int64           `json:"entry_id"`
	DocumentRef   string          `json:"document_ref"`
	Status        policy.Status   `json:"status"`
	Reasons       []policy.Reason `json:"reasons,omitempty"`
	PolicyVersion string          `json:"policy_version"`
	InputDigest   string          `json:"input_digest"`
	EvaluatedAt   string          `json:"evaluated_at"`
	RecordedAt    string          `json:"recorded_at"`
}

// QueryOpts holds filters for audit log queries.
type QueryOpts struct {
	Status      string
	DocumentRef string
	Since       string // RFC3339 lower bound on recorded_at
	Limit       int
}
