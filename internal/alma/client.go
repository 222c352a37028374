// Package alma talks to the library-management system's users API: reading
// a user record, rewriting its group, and writing it back.
package alma

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the hosted North America endpoint.
const DefaultBaseURL = "https://api-na.hosted.exlibrisgroup.com"

const usersPath = "/almaws/v1/users"

// Client is a minimal HTTP client for the users endpoints this system
// needs.
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
}

// NewClient constructs a client. baseURL may be a full URL or a bare
// hostname (https is assumed); an empty baseURL uses DefaultBaseURL.
func NewClient(baseURL, apiKey string) (*Client, error) {
	raw := strings.TrimSpace(baseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API base URL must include a host (got %q)", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &Client{
		baseURL: u,
		apiKey:  strings.TrimSpace(apiKey),
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (c *Client) userURL(barcode string) string {
	u := *c.baseURL
	u.Path = u.Path + usersPath + "/" + url.PathEscape(barcode)
	// override names the field the subsequent PUT is allowed to overwrite.
	u.RawQuery = url.Values{"override": {"user_group"}}.Encode()
	return u.String()
}

// GetUser fetches one user record as XML by primary identifier.
func (c *Client) GetUser(ctx context.Context, barcode string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userURL(barcode), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError("getUser", resp, b)
	}
	return b, nil
}

// PutUser writes a full user record back, overwriting the group field per
// the override query parameter.
func (c *Client) PutUser(ctx context.Context, barcode string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.userURL(barcode), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "apikey "+c.apiKey)
	req.Header.Set("Content-Type", "application/xml")
	req.Header.Set("Accept", "application/xml")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return statusError("putUser", resp, b)
	}
	return nil
}

// statusError wraps rate-limit and server-side failures as transient so
// the applier retries them; anything else is permanent for the record.
func statusError(op string, resp *http.Response, body []byte) error {
	httpErr := newHTTPError(op, resp, body)
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode/100 == 5 {
		return &TransientError{Err: httpErr}
	}
	return httpErr
}
