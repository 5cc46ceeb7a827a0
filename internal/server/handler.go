package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spendguard/spendguard/internal/expense"
	"github.com/spendguard/spendguard/internal/policy"
	"github.com/spendguard/spendguard/internal/review"
)

// ExpenseRequest is the submission body for POST /v1/expenses. Fields
// carries extractor output produced by the calling UI.
type ExpenseRequest struct {
	DocumentRef string                  `json:"document_ref,omitempty"`
	Fields      expense.ExtractedFields `json:"fields"`
}

// ExpenseResponse is returned for every evaluated submission. Reason
// codes are the stable external vocabulary; internal errors never leak
// through here.
type ExpenseResponse struct {
	DocumentRef   string          `json:"document_ref"`
	EntryID       int64           `json:"entry_id"`
	Status        policy.Status   `json:"status"`
	Reasons       []policy.Reason `json:"reasons"`
	PolicyVersion string          `json:"policy_version"`
	EvaluatedAt   string          `json:"evaluated_at"`
}

// Handler serves POST /v1/expenses.
type Handler struct {
	reviewer *review.Reviewer
	logger   *slog.Logger
}

// NewHandler creates the expense submission handler.
func NewHandler(reviewer *review.Reviewer, logger *slog.Logger) *Handler {
	return &Handler{reviewer: reviewer, logger: logger}
}

// ServeHTTP handles POST /v1/expenses.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req ExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}

	verdict, entry, err := h.reviewer.SubmitFields(r.Context(), req.DocumentRef, req.Fields)
	if err != nil {
		if errors.Is(err, expense.ErrInvalidInput) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": "extraction output cannot be evaluated",
			})
			return
		}
		h.logger.Error("submission failed",
			"document", req.DocumentRef,
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not record decision"})
		return
	}

	writeJSON(w, http.StatusOK, ExpenseResponse{
		DocumentRef:   entry.DocumentRef,
		EntryID:       entry.EntryID,
		Status:        verdict.Status,
		Reasons:       verdict.Reasons,
		PolicyVersion: verdict.PolicyVersion,
		EvaluatedAt:   entry.EvaluatedAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Header already sent; nothing left to do but log.
		slog.Default().Error("writeJSON: encode failed", "error", err)
	}
}
