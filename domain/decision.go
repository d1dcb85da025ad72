package domain

import "time"

// TrustDecision is the per-request verdict of the trust evaluator. It is
// ephemeral and never persisted.
type TrustDecision struct {
	Score   int
	Allowed bool
	Reason  string
}

// RateWindow tracks request pressure for one client identity. The window resets
// when the gap since LastSeenAt exceeds the configured interval; within a window
// the count only grows.
type RateWindow struct {
	Count      int
	LastSeenAt time.Time
}
