package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SquadMembership describes the squad a user belongs to.
type SquadMembership struct {
	SquadID   string `json:"squad_id"`
	Title     string `json:"title"`
	IsCaptain bool   `json:"is_captain"`
}

// SquadDirectory resolves a user's squad membership.
type SquadDirectory interface {
	// SquadOf returns the user's squad, or nil if the user has none.
	SquadOf(ctx context.Context, userID uint) (*SquadMembership, error)
}

type HTTPSquadDirectory struct {
	httpClient *http.Client
	baseURL    string
}

func NewHTTPSquadDirectory(baseURL string, timeout time.Duration) *HTTPSquadDirectory {
	return &HTTPSquadDirectory{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
	}
}

func (c *HTTPSquadDirectory) SquadOf(ctx context.Context, userID uint) (*SquadMembership, error) {
	url := fmt.Sprintf("%s/api/users/%d/squad", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build squad request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("squad directory request failed: %w", err)
	}
	defer resp.Body.Close()

	// A user without a squad is a normal answer, not an error
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("squad directory returned status %d", resp.StatusCode)
	}

	var membership SquadMembership
	if err := json.NewDecoder(resp.Body).Decode(&membership); err != nil {
		return nil, fmt.Errorf("failed to decode squad response: %w", err)
	}

	return &membership, nil
}
