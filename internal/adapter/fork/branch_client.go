// Package fork provisions isolated data contexts for scoring workers and
// tracks them in the fork ledger.
package fork

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/resume-scorer/internal/domain"
)

// BranchClient talks to the database branching API. A branch is a copy-on-write
// view of the primary store; the API hands back a DSN scoped to the branch.
type BranchClient struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewBranchClient constructs a client for the branching API at baseURL.
// Returns nil when baseURL is empty so callers can treat branching as
// unconfigured.
func NewBranchClient(baseURL, token string) *BranchClient {
	if baseURL == "" {
		return nil
	}
	return &BranchClient{
		baseURL: baseURL,
		token:   token,
		hc: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type branchRequest struct {
	BranchID string `json:"branch_id"`
	Mode     string `json:"mode"`
}

type branchResponse struct {
	DSN string `json:"dsn"`
}

// CreateZeroCopy requests a copy-on-write branch and returns its DSN.
func (c *BranchClient) CreateZeroCopy(ctx domain.Context, branchID string) (string, error) {
	return c.create(ctx, branchID, "zero_copy")
}

// CreateClone requests a full clone branch and returns its DSN. Slower than
// zero-copy but works when the backend has no copy-on-write support.
func (c *BranchClient) CreateClone(ctx domain.Context, branchID string) (string, error) {
	return c.create(ctx, branchID, "clone")
}

func (c *BranchClient) create(ctx domain.Context, branchID, mode string) (string, error) {
	b, _ := json.Marshal(branchRequest{BranchID: branchID, Mode: mode})
	var out branchResponse
	op := func() error {
		// Recreate request each attempt to avoid reusing consumed bodies
		r, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/branches", bytes.NewReader(b))
		if err != nil {
			return backoff.Permanent(err)
		}
		r.Header.Set("Content-Type", "application/json")
		if c.token != "" {
			r.Header.Set("Authorization", "Bearer "+c.token)
		}
		resp, err := c.hc.Do(r)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("branch api rate limited: 429")
		}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("branch api status %d", resp.StatusCode))
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("branch api status %d", resp.StatusCode)
		}
		if err := json.Unmarshal(bodyBytes, &out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(expo, ctx)); err != nil {
		return "", fmt.Errorf("op=fork.branch_create mode=%s: %w", mode, err)
	}
	if out.DSN == "" {
		return "", fmt.Errorf("op=fork.branch_create mode=%s: empty dsn in response", mode)
	}
	return out.DSN, nil
}

// Drop deletes a branch. Best effort; failures are logged and swallowed
// because the branch backend garbage-collects orphans on its own schedule.
func (c *BranchClient) Drop(ctx domain.Context, branchID string) {
	r, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/v1/branches/"+branchID, nil)
	if err != nil {
		return
	}
	if c.token != "" {
		r.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.hc.Do(r)
	if err != nil {
		slog.Warn("branch drop failed", slog.String("branch_id", branchID), slog.Any("error", err))
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		slog.Warn("branch drop non-2xx", slog.String("branch_id", branchID), slog.Int("status", resp.StatusCode))
	}
}
