package clientstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"talentpulse/internal/common"
)

// HistoryClient is the pull side of the notification API.
type HistoryClient interface {
	FetchPage(ctx context.Context, page, limit int) (*common.NotificationPage, error)
	MarkRead(ctx context.Context, ids []string) error
	MarkAllRead(ctx context.Context) error
}

// HTTPHistoryClient talks to the notification REST routes with a bearer token.
type HTTPHistoryClient struct {
	httpClient *http.Client
	baseURL    string
	token      func() string
}

func NewHTTPHistoryClient(baseURL string, token func() string) *HTTPHistoryClient {
	return &HTTPHistoryClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
	}
}

// FetchPage always asks for raw entries; grouping is a view concern.
func (c *HTTPHistoryClient) FetchPage(ctx context.Context, page, limit int) (*common.NotificationPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("grouped", "false")

	var out common.NotificationPage
	if err := c.getJSON(ctx, "/notifications?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPHistoryClient) MarkRead(ctx context.Context, ids []string) error {
	if len(ids) == 1 {
		return c.putJSON(ctx, "/notifications/"+url.PathEscape(ids[0])+"/read", nil, nil)
	}
	return c.putJSON(ctx, "/notifications/read", map[string][]string{"ids": ids}, nil)
}

func (c *HTTPHistoryClient) MarkAllRead(ctx context.Context) error {
	return c.putJSON(ctx, "/notifications/read-all", nil, nil)
}

func (c *HTTPHistoryClient) getJSON(ctx context.Context, path string, result any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, result)
}

func (c *HTTPHistoryClient) putJSON(ctx context.Context, path string, body any, result any) error {
	return c.doJSON(ctx, http.MethodPut, path, body, result)
}

func (c *HTTPHistoryClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != nil {
		if tok := c.token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return common.ErrAuthRejected
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("http error: status=%d, body=%s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
