package gitops

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/julian-najas/cacp/pkg/models"
	"github.com/julian-najas/cacp/pkg/version"
)

// Labels attached to every proposal PR.
var proposalLabels = []string{"automated", "hmac-verified"}

// PRResult describes a successfully opened pull request.
type PRResult struct {
	PRNumber int    `json:"pr_number"`
	PRURL    string `json:"pr_url"`
	Branch   string `json:"branch"`
}

// Client submits signed execution plans as pull requests against the GitOps
// configuration repository.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	owner      string
	repo       string
	logger     *slog.Logger
}

// NewClient creates a GitHub client for PR submission.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		baseURL:    "https://api.github.com",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		owner:      owner,
		repo:       repo,
		logger:     slog.Default(),
	}
}

type repoResponse struct {
	DefaultBranch string `json:"default_branch"`
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type pullResponse struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// CreatePlanPR creates a branch, commits the signed plan, and opens a
// labelled PR. The plan file lands at environments/<env>/plans/<plan_id>.json.
func (c *Client) CreatePlanPR(ctx context.Context, plan models.ExecutionPlan, branch string) (*PRResult, error) {
	// 1. Resolve the default branch and its head commit.
	defaultBranch, err := c.defaultBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default branch: %w", err)
	}

	headSHA, err := c.branchHead(ctx, defaultBranch)
	if err != nil {
		return nil, fmt.Errorf("resolve head of %s: %w", defaultBranch, err)
	}

	// 2. Create the proposal branch from that commit.
	if err := c.createBranch(ctx, branch, headSHA); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", branch, err)
	}

	// 3. Commit the plan manifest onto the branch.
	path := fmt.Sprintf("environments/%s/plans/%s.json", plan.Environment, plan.PlanID)
	if err := c.commitFile(ctx, branch, path, plan); err != nil {
		return nil, fmt.Errorf("commit plan to %s: %w", path, err)
	}

	// 4. Open the PR and label it.
	appointmentID := ""
	if len(plan.Actions) > 0 {
		appointmentID = plan.Actions[0].AppointmentID
	}

	result, err := c.openPR(ctx, branch, defaultBranch, appointmentID, plan)
	if err != nil {
		return nil, fmt.Errorf("open PR for %s: %w", branch, err)
	}

	if err := c.addLabels(ctx, result.PRNumber); err != nil {
		// The PR exists; labelling is best-effort.
		c.logger.Warn("Failed to label PR", "pr_number", result.PRNumber, "error", err)
	}

	return result, nil
}

func (c *Client) defaultBranch(ctx context.Context) (string, error) {
	var repo repoResponse
	if err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s", c.owner, c.repo), nil, &repo); err != nil {
		return "", err
	}
	if repo.DefaultBranch == "" {
		return "main", nil
	}
	return repo.DefaultBranch, nil
}

func (c *Client) branchHead(ctx context.Context, branch string) (string, error) {
	var ref refResponse
	if err := c.doJSON(ctx, http.MethodGet,
		fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", c.owner, c.repo, branch), nil, &ref); err != nil {
		return "", err
	}
	return ref.Object.SHA, nil
}

func (c *Client) createBranch(ctx context.Context, branch, sha string) error {
	body := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": sha,
	}
	return c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/git/refs", c.owner, c.repo), body, nil)
}

func (c *Client) commitFile(ctx context.Context, branch, path string, plan models.ExecutionPlan) error {
	content, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}

	body := map[string]string{
		"message": fmt.Sprintf("Add execution plan %s", plan.PlanID),
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	return c.doJSON(ctx, http.MethodPut,
		fmt.Sprintf("/repos/%s/%s/contents/%s", c.owner, c.repo, path), body, nil)
}

func (c *Client) openPR(ctx context.Context, branch, base, appointmentID string, plan models.ExecutionPlan) (*PRResult, error) {
	title := branch
	if appointmentID != "" {
		title = fmt.Sprintf("%s — %s", branch, appointmentID)
	}

	body := map[string]string{
		"title": title,
		"head":  branch,
		"base":  base,
		"body": fmt.Sprintf("appointment_id: %s\nenvironment: %s\nrisk_level: %s\nactions: %d",
			appointmentID, plan.Environment, plan.RiskLevel, len(plan.Actions)),
	}

	var pull pullResponse
	if err := c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/pulls", c.owner, c.repo), body, &pull); err != nil {
		return nil, err
	}

	return &PRResult{
		PRNumber: pull.Number,
		PRURL:    pull.HTMLURL,
		Branch:   branch,
	}, nil
}

func (c *Client) addLabels(ctx context.Context, prNumber int) error {
	body := map[string][]string{"labels": proposalLabels}
	return c.doJSON(ctx, http.MethodPost,
		fmt.Sprintf("/repos/%s/%s/issues/%d/labels", c.owner, c.repo, prNumber), body, nil)
}

// doJSON performs one API call, encoding the request body and decoding the
// response into out when non-nil. Any non-2xx status is an error.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", version.Full())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GitHub returned HTTP %d for %s %s", resp.StatusCode, method, path)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
