// Package policy provides the HTTP client for the Open Policy Agent decision
// oracle. Proposal validation fails closed: callers treat any transport or
// decoding error as a denial.
package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Decision values returned by the policy package.
const (
	DecisionAllow = "ALLOW"
	DecisionDeny  = "DENY"
)

// Result is the oracle's verdict for one decision request.
type Result struct {
	Decision   string   `json:"decision"`
	Violations []string `json:"violations"`
}

// Allowed reports whether the oracle explicitly allowed the action.
func (r *Result) Allowed() bool {
	return r.Decision == DecisionAllow
}

// Client evaluates decision requests against an OPA instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates an OPA client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type evaluateResponse struct {
	Result struct {
		Decision   string   `json:"decision"`
		Violations []string `json:"violations"`
	} `json:"result"`
}

// Evaluate posts the input document to the clinic policy package and returns
// the decision. A missing decision in the response reads as DENY.
func (c *Client) Evaluate(ctx context.Context, input map[string]any) (*Result, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal OPA input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/data/clinic/policy", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OPA unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OPA returned HTTP %d", resp.StatusCode)
	}

	var decoded evaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode OPA response: %w", err)
	}

	decision := decoded.Result.Decision
	if decision == "" {
		decision = DecisionDeny
	}

	return &Result{
		Decision:   decision,
		Violations: decoded.Result.Violations,
	}, nil
}

// Health posts a minimal query to OPA's health document. Returns false on any
// failure.
func (c *Client) Health(ctx context.Context) bool {
	body := []byte(`{"input":{}}`)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/data/health", bytes.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
