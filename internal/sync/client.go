package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/util"
)

// UserAgent identifies this application to the sync service
const UserAgent = "TunePracticeTracker/1.0 (https://github.com/keeva/tunepractice)"

const defaultTimeout = 30 * time.Second

// Client talks to the remote sync service over HTTP with JSON bodies
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	deviceID   string
}

// NewClient creates a sync client for the given base URL. A zero timeout
// uses the default.
func NewClient(baseURL, deviceID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   baseURL,
		userAgent: UserAgent,
		deviceID:  deviceID,
	}
}

type pushRequest struct {
	UserID   string               `json:"user_id"`
	DeviceID string               `json:"device_id"`
	Changes  []*store.OutboxEntry `json:"changes"`
}

// PushChanges uploads a batch of outbox entries and returns which the
// service accepted.
func (c *Client) PushChanges(ctx context.Context, userID string, entries []*store.OutboxEntry) (*PushResult, error) {
	body, err := json.Marshal(&pushRequest{
		UserID:   userID,
		DeviceID: c.deviceID,
		Changes:  entries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	urlStr := fmt.Sprintf("%s/v1/changes", c.baseURL)
	util.DebugLog("Sync API: pushing %d changes", len(entries))

	req, err := http.NewRequestWithContext(ctx, "POST", urlStr, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var result PushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}

	util.DebugLog("Sync API: %d acked, %d rejected", len(result.AckedIDs), len(result.RejectedIDs))
	return &result, nil
}

// PullChanges fetches one page of the change feed after the given sequence.
func (c *Client) PullChanges(ctx context.Context, userID string, since int64, limit int) (*PullPage, error) {
	params := url.Values{}
	params.Set("user_id", userID)
	params.Set("since", fmt.Sprintf("%d", since))
	params.Set("limit", fmt.Sprintf("%d", limit))
	urlStr := fmt.Sprintf("%s/v1/changes?%s", c.baseURL, params.Encode())

	util.DebugLog("Sync API: pulling changes since %d", since)

	req, err := http.NewRequestWithContext(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(respBody))
	}

	var page PullPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode pull response: %w", err)
	}

	util.DebugLog("Sync API: pulled %d changes, next seq %d", len(page.Changes), page.NextSeq)
	return &page, nil
}
