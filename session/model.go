package session

import (
	"maps"
	"time"
)

// Session is one authenticated wallet connection.
//
// ID and ConnectedAt are immutable once created. Address is stored lowercase.
type Session struct {
	ID           string         `json:"id"`
	Address      string         `json:"address"`
	ChainID      int64          `json:"chainId"`
	ConnectedAt  time.Time      `json:"connectedAt"`
	LastActivity time.Time      `json:"lastActivity"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Clone returns a copy whose Metadata map is not shared with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Metadata != nil {
		out.Metadata = maps.Clone(s.Metadata)
	}
	return &out
}

// IdleFor reports how long the session has been idle at now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	if s == nil || s.LastActivity.IsZero() {
		return 0
	}
	return now.Sub(s.LastActivity)
}
