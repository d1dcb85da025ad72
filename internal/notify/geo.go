package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultGeoBase = "http://ip-api.com"

// GeoInfo describes a visitor's origin for notification text.
type GeoInfo struct {
	Country string
	Flag    string
}

// GeoLookup resolves a client IP to its origin. Implementations are
// best-effort: on any failure they return a zero-ish GeoInfo, never an error.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) GeoInfo
}

// GeoClient implements GeoLookup against the ip-api.com JSON endpoint.
type GeoClient struct {
	httpClient *http.Client
	baseURL    string
}

// GeoOption customizes a GeoClient.
type GeoOption func(*GeoClient)

// WithGeoBaseURL overrides the endpoint, mainly for tests.
func WithGeoBaseURL(baseURL string) GeoOption {
	return func(c *GeoClient) {
		c.baseURL = baseURL
	}
}

// NewGeoClient creates a geo lookup client.
func NewGeoClient(timeout time.Duration, opts ...GeoOption) *GeoClient {
	c := &GeoClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultGeoBase,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type geoResponse struct {
	Status      string `json:"status"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

// Lookup resolves the IP. Unknown origins come back as {"Unknown", ""}.
func (c *GeoClient) Lookup(ctx context.Context, ip string) GeoInfo {
	unknown := GeoInfo{Country: "Unknown"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/json/%s", c.baseURL, ip), nil)
	if err != nil {
		return unknown
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return unknown
	}
	defer resp.Body.Close()

	var decoded geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return unknown
	}
	if decoded.Status != "success" {
		return unknown
	}

	return GeoInfo{
		Country: decoded.Country,
		Flag:    countryCodeToFlag(decoded.CountryCode),
	}
}

// countryCodeToFlag converts an ISO 3166-1 alpha-2 code to its regional
// indicator emoji.
func countryCodeToFlag(code string) string {
	flag := make([]rune, 0, len(code))
	for _, r := range code {
		if r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		if r < 'A' || r > 'Z' {
			return ""
		}
		flag = append(flag, r+127397)
	}
	return string(flag)
}
