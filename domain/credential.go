package domain

import "time"

// Credential is a server-issued capability token binding a visitor session to a
// redirect intent. Issued ids carry at least 128 bits of entropy.
type Credential struct {
	ID         string    `json:"id"`
	BoundValue string    `json:"bound_value"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Used       bool      `json:"used"`
	Attempts   int       `json:"attempts"`
}

// Expired reports whether the credential is past its expiry at the given instant.
// A credential is valid only while now < ExpiresAt.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
