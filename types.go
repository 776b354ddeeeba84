package goSession

import (
	"github.com/MrEthical07/goSession/analytics"
	"github.com/MrEthical07/goSession/session"
)

// Session is a wallet session as stored by the [Service].
type Session = session.Session

// ReconcileResult counts what one reconciliation sweep inspected and repaired.
type ReconcileResult = session.ReconcileResult

// AnalyticsSnapshot summarizes the live sessions at one instant.
type AnalyticsSnapshot = analytics.Snapshot

// SessionUpdate is a partial update applied by [Service.UpdateSession].
// Nil fields are left unchanged.
type SessionUpdate struct {
	// ChainID replaces the session chain after allow-list validation.
	ChainID *int64 `json:"chainId,omitempty"`
	// Metadata is merged key-wise into the stored metadata. A nil value
	// deletes the key.
	Metadata map[string]any `json:"metadata,omitempty"`
}
