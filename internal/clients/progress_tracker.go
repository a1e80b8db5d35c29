// Package clients holds thin HTTP clients for the collaborators the
// prediction engine consults: the progress tracker (quiz/test completion)
// and the squad directory. Every call carries the configured timeout; any
// failure is surfaced to the caller, which must fail closed.
package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ProgressTracker answers how engaged a user is on the platform.
type ProgressTracker interface {
	// CompletedCount returns how many quizzes/tests the user has finished.
	CompletedCount(ctx context.Context, userID uint) (int, error)
	// WarmAccount reports whether the user cleared the minimum engagement
	// bar required before staking.
	WarmAccount(ctx context.Context, userID uint) (bool, error)
}

type HTTPProgressTracker struct {
	httpClient *http.Client
	baseURL    string
}

func NewHTTPProgressTracker(baseURL string, timeout time.Duration) *HTTPProgressTracker {
	return &HTTPProgressTracker{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

type progressResponse struct {
	CompletedCount int  `json:"completed_count"`
	WarmAccount    bool `json:"warm_account"`
}

func (c *HTTPProgressTracker) fetchProgress(ctx context.Context, userID uint) (*progressResponse, error) {
	url := fmt.Sprintf("%s/api/users/%d/progress", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build progress request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("progress tracker request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("progress tracker returned status %d", resp.StatusCode)
	}

	var progress progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		return nil, fmt.Errorf("failed to decode progress response: %w", err)
	}

	return &progress, nil
}

func (c *HTTPProgressTracker) CompletedCount(ctx context.Context, userID uint) (int, error) {
	progress, err := c.fetchProgress(ctx, userID)
	if err != nil {
		return 0, err
	}
	return progress.CompletedCount, nil
}

func (c *HTTPProgressTracker) WarmAccount(ctx context.Context, userID uint) (bool, error) {
	progress, err := c.fetchProgress(ctx, userID)
	if err != nil {
		return false, err
	}
	return progress.WarmAccount, nil
}
