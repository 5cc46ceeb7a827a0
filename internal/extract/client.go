package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spendguard/spendguard/internal/expense"
)

// extractRequest is sent to POST /v1/extract on the extraction agent.
type extractRequest struct {
	ImageRef string `json:"image_ref"`
}

// extractResponse mirrors the agent's wire format.
type extractResponse struct {
	Success       bool                    `json:"success"`
	ExtractedData expense.ExtractedFields `json:"extracted_data"`
	Error         string                  `json:"error,omitempty"`
}

// UpstreamError is returned when the extraction agent answers with a
// non-success payload or status.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("extraction agent: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Client calls the external extraction agent over HTTP. The per-call
// timeout bounds every Extract; callers may tighten it further via ctx.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the extraction agent.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Extract requests structured fields for the given document image.
func (c *Client) Extract(ctx context.Context, imageRef string) (expense.ExtractedFields, error) {
	body, err := json.Marshal(extractRequest{ImageRef: imageRef})
	if err != nil {
		return expense.ExtractedFields{}, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return expense.ExtractedFields{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return expense.ExtractedFields{}, fmt.Errorf("calling extraction agent: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return expense.ExtractedFields{}, &UpstreamError{
			StatusCode: httpResp.StatusCode,
			Message:    http.StatusText(httpResp.StatusCode),
		}
	}

	var resp extractResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return expense.ExtractedFields{}, fmt.Errorf("decoding response: %w", err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "extraction failed"
		}
		return expense.ExtractedFields{}, &UpstreamError{StatusCode: httpResp.StatusCode, Message: msg}
	}
	return resp.ExtractedData, nil
}
