// Package yandex implements the count-only Yandex Mail provider over the
// Yandex REST APIs.
package yandex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/mailbadge/internal/provider"
)

// defaultLoginURL is the identity endpoint; it lives on a different host
// than the mail API.
const defaultLoginURL = "https://login.yandex.ru"

// tokenProvider supplies a currently valid access token, re-authorizing
// if needed.
type tokenProvider interface {
	AccessToken(ctx context.Context) (string, error)
}

// Client is a thin HTTP client for the Yandex mail and login APIs. Yandex
// uses the "OAuth" authorization scheme rather than "Bearer".
type Client struct {
	apiURL     string
	loginURL   string
	tokens     tokenProvider
	httpClient *http.Client
}

// NewClient creates a Yandex API client rooted at apiURL.
func NewClient(apiURL string, tokens tokenProvider) *Client {
	return &Client{
		apiURL:   strings.TrimRight(apiURL, "/"),
		loginURL: defaultLoginURL,
		tokens:   tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// get performs an authorized GET against url and decodes the JSON
// response into result. Non-2xx responses become *provider.APIError.
func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	access, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+access)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &provider.APIError{
			ProviderID: "yandex",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", url, err)
	}
	return nil
}

// userInfo is the /info response shape from the login endpoint.
type userInfo struct {
	DefaultEmail string   `json:"default_email"`
	Emails       []string `json:"emails"`
}

// Profile fetches the authorized user's primary address.
func (c *Client) Profile(ctx context.Context) (provider.Profile, error) {
	var info userInfo
	if err := c.get(ctx, c.loginURL+"/info", &info); err != nil {
		return provider.Profile{}, err
	}

	email := info.DefaultEmail
	if email == "" && len(info.Emails) > 0 {
		email = info.Emails[0]
	}
	if email == "" {
		return provider.Profile{}, fmt.Errorf("yandex profile carries no email address")
	}
	return provider.Profile{Email: email}, nil
}

// counters is the /mailbox/counters response shape.
type counters struct {
	Counters struct {
		Unread int `json:"unread"`
	} `json:"counters"`
}

// UnreadCount fetches the mailbox unread counter. A response without the
// counter yields 0; request failures propagate.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var res counters
	if err := c.get(ctx, c.apiURL+"/mailbox/counters", &res); err != nil {
		return 0, err
	}
	return res.Counters.Unread, nil
}
