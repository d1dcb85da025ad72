// Package api holds the wire models of the gate's HTTP surface.
package api

// GenerateRequest asks for a fresh redirect credential.
type GenerateRequest struct {
	URL string `json:"url"`
	// ExpiresIn is the requested credential lifetime in milliseconds.
	// Zero selects the default; values above 24h are clamped.
	ExpiresIn int64 `json:"expiresIn,omitempty"`
}

// GenerateResponse carries the issued token and its redirect entry path.
type GenerateResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}
