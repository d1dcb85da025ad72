// Package reputation queries the external bot-reputation service for a
// per-visitor verdict.
package reputation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://moonito.net"

// eventTag is sent with every query so the service attributes traffic to the
// gated entry points.
const eventTag = "/login"

// Verdict is the service's answer for one client.
type Verdict struct {
	Status struct {
		IsBot bool `json:"is_bot"`
	} `json:"status"`
}

// Checker is implemented by reputation clients.
type Checker interface {
	Check(ctx context.Context, ip, userAgent string) (*Verdict, error)
}

// Client calls the reputation HTTP API. The service domain reported with each
// query is chosen randomly per call from the configured pool.
type Client struct {
	httpClient *http.Client
	baseURL    string
	publicKey  string
	secretKey  string
	domains    []string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL overrides the service endpoint, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a reputation client. Every request is bounded by timeout.
func NewClient(publicKey, secretKey string, domains []string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		publicKey:  publicKey,
		secretKey:  secretKey,
		domains:    domains,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check queries the service with the client IP and user agent. A transport or
// decode failure is an error; the caller treats it as a terminal denial for
// the request.
func (c *Client) Check(ctx context.Context, ip, userAgent string) (*Verdict, error) {
	if len(c.domains) == 0 {
		return nil, errors.New("reputation domain pool is empty")
	}
	domain := c.domains[rand.IntN(len(c.domains))]

	endpoint := fmt.Sprintf("%s/api/v1/analytics?domain=%s&ip=%s&ua=%s&events=%s",
		c.baseURL,
		url.QueryEscape(domain),
		url.QueryEscape(ip),
		url.QueryEscape(userAgent),
		url.QueryEscape(eventTag),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build reputation request: %w", err)
	}
	req.Header.Set("X-Public-Key", c.publicKey)
	req.Header.Set("X-Secret-Key", c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reputation query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reputation query: unexpected status %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("decode reputation response: %w", err)
	}

	return &verdict, nil
}
