// Package social implements the social-API source: breaking-news accounts
// polled through an authenticated REST API.
package social

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"CryptoAggregator/internal/ports"
	"CryptoAggregator/internal/retry"
)

// Client talks to the social platform's v2-style REST API with bearer-token
// authentication.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

var _ ports.SocialClient = (*Client)(nil)

// NewClient creates a reusable API client.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ResolveHandle maps an account handle to its stable user ID.
func (c *Client) ResolveHandle(ctx context.Context, handle string) (string, error) {
	var resp struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}

	path := "/users/by/username/" + url.PathEscape(handle)
	if err := c.get(ctx, path, nil, &resp); err != nil {
		return "", fmt.Errorf("resolve @%s: %w", handle, err)
	}
	if resp.Data.ID == "" {
		return "", retry.Structural(fmt.Errorf("resolve @%s: account not found", handle))
	}
	return resp.Data.ID, nil
}

// RecentPosts returns the account's latest posts with engagement metrics,
// newest first.
func (c *Client) RecentPosts(ctx context.Context, userID string, limit int) ([]ports.SocialPost, error) {
	var resp struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			CreatedAt string `json:"created_at"`
			Metrics   struct {
				Reposts int `json:"retweet_count"`
				Replies int `json:"reply_count"`
				Likes   int `json:"like_count"`
				Quotes  int `json:"quote_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}

	query := url.Values{
		"max_results":  {strconv.Itoa(limit)},
		"tweet.fields": {"created_at,public_metrics"},
	}
	path := "/users/" + url.PathEscape(userID) + "/tweets"
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("recent posts for %s: %w", userID, err)
	}

	posts := make([]ports.SocialPost, 0, len(resp.Data))
	for _, raw := range resp.Data {
		publishedAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			continue
		}
		posts = append(posts, ports.SocialPost{
			ID:          raw.ID,
			Text:        raw.Text,
			PublishedAt: publishedAt.UTC(),
			Reposts:     raw.Metrics.Reposts,
			Replies:     raw.Metrics.Replies,
			Likes:       raw.Metrics.Likes,
			Quotes:      raw.Metrics.Quotes,
		})
	}
	return posts, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, v any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return retry.Structural(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return retry.Structural(fmt.Errorf("api returned %s, check the bearer token", resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("api rate limited (%s)", resp.Status)
	default:
		return fmt.Errorf("api returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
