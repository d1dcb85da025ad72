package services

import "strings"

// OSURLs holds the per-OS base destination URLs.
type OSURLs struct {
	Windows string
	Mac     string
	Android string
	IOS     string
	Others  string
}

// DestinationResolver composes the final redirect URL from a visitor's user
// agent and the looked-up payload. Resolve is deterministic: identical inputs
// always yield the identical URL string.
type DestinationResolver struct {
	urls          OSURLs
	appendPayload bool
}

// NewDestinationResolver creates a resolver. appendPayload controls whether
// the payload value is joined onto the selected base URL.
func NewDestinationResolver(urls OSURLs, appendPayload bool) *DestinationResolver {
	return &DestinationResolver{
		urls:          urls,
		appendPayload: appendPayload,
	}
}

// Resolve picks the base URL for the user agent and optionally appends the
// payload with exactly one slash between the two parts. The payload is trusted
// opaque data from the lookup collaborator; no escaping is applied.
func (r *DestinationResolver) Resolve(userAgent, payload string) string {
	base := r.baseFor(userAgent)
	if !r.appendPayload || payload == "" {
		return base
	}

	base = strings.TrimSuffix(base, "/")
	payload = strings.TrimPrefix(payload, "/")

	return base + "/" + payload
}

// baseFor selects the OS URL by substring match, first match wins.
func (r *DestinationResolver) baseFor(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return r.urls.Windows
	case strings.Contains(userAgent, "Macintosh"):
		return r.urls.Mac
	case strings.Contains(userAgent, "Android"):
		return r.urls.Android
	case strings.Contains(userAgent, "iPhone"),
		strings.Contains(userAgent, "iPad"),
		strings.Contains(userAgent, "iOS"):
		return r.urls.IOS
	default:
		return r.urls.Others
	}
}
