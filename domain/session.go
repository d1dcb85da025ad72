package domain

import "time"

// FlowStage tracks a visitor's progress through the gated flow.
type FlowStage int

const (
	// FlowStageStart is the initial stage before any entry point bound the session.
	FlowStageStart FlowStage = iota
	// FlowStageAwaitingProcess means an entry point accepted the visitor and the
	// next expected request is the process stage.
	FlowStageAwaitingProcess
)

// Session is the per-visitor server-side binding between a browser-held session
// identifier and the credential or allow-listed key the visitor presented.
type Session struct {
	ID           string    `json:"id"`
	CredentialID string    `json:"credential_id,omitempty"`
	AllowKeyID   string    `json:"allow_key_id,omitempty"`
	BoundValue   string    `json:"bound_value,omitempty"`
	Stage        FlowStage `json:"stage"`
	CreatedAt    time.Time `json:"created_at"`
}

// Bound reports whether the session carries a credential or an allow-listed key.
// The process stage guard rejects unbound sessions.
func (s *Session) Bound() bool {
	return s.CredentialID != "" || s.AllowKeyID != ""
}
