package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	sessionFormatVersionCurrent = 1

	// DefaultMaxMetadataBytes caps the encoded size of Session.Metadata.
	DefaultMaxMetadataBytes = 10 * 1024
)

const timestampLayout = time.RFC3339Nano

type wireSession struct {
	Version      uint8           `json:"v"`
	ID           *string         `json:"id"`
	Address      *string         `json:"address"`
	ChainID      *int64          `json:"chainId"`
	ConnectedAt  *string         `json:"connectedAt"`
	LastActivity *string         `json:"lastActivity"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

// Encode serializes s using the default metadata cap.
func Encode(s *Session) ([]byte, error) {
	return encodeWithLimit(s, DefaultMaxMetadataBytes)
}

func encodeWithLimit(s *Session, maxMetadata int) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	w := wireSession{
		Version: sessionFormatVersionCurrent,
		ID:      &s.ID,
		Address: &s.Address,
		ChainID: &s.ChainID,
	}
	connectedAt := s.ConnectedAt.UTC().Format(timestampLayout)
	lastActivity := s.LastActivity.UTC().Format(timestampLayout)
	w.ConnectedAt = &connectedAt
	w.LastActivity = &lastActivity

	if len(s.Metadata) > 0 {
		meta, err := json.Marshal(s.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMetadataInvalid, err)
		}
		if maxMetadata > 0 && len(meta) > maxMetadata {
			return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrMetadataTooLarge, len(meta), maxMetadata)
		}
		w.Metadata = meta
	}

	return json.Marshal(w)
}

// Decode parses a stored record. Unknown fields are ignored; a missing
// required field or a newer format version yields a *DecodeError.
func Decode(data []byte) (*Session, error) {
	var w wireSession
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if w.Version > sessionFormatVersionCurrent {
		return nil, &DecodeError{Field: "v", Err: fmt.Errorf("unsupported format version %d", w.Version)}
	}

	switch {
	case w.ID == nil || *w.ID == "":
		return nil, &DecodeError{Field: "id"}
	case w.Address == nil || *w.Address == "":
		return nil, &DecodeError{Field: "address"}
	case w.ChainID == nil:
		return nil, &DecodeError{Field: "chainId"}
	case w.ConnectedAt == nil:
		return nil, &DecodeError{Field: "connectedAt"}
	case w.LastActivity == nil:
		return nil, &DecodeError{Field: "lastActivity"}
	}

	connectedAt, err := time.Parse(timestampLayout, *w.ConnectedAt)
	if err != nil {
		return nil, &DecodeError{Field: "connectedAt", Err: err}
	}
	lastActivity, err := time.Parse(timestampLayout, *w.LastActivity)
	if err != nil {
		return nil, &DecodeError{Field: "lastActivity", Err: err}
	}

	s := &Session{
		ID:           *w.ID,
		Address:      *w.Address,
		ChainID:      *w.ChainID,
		ConnectedAt:  connectedAt.UTC(),
		LastActivity: lastActivity.UTC(),
	}

	if len(w.Metadata) > 0 && !bytes.Equal(w.Metadata, []byte("null")) {
		var meta map[string]any
		if err := json.Unmarshal(w.Metadata, &meta); err != nil {
			return nil, &DecodeError{Field: "metadata", Err: err}
		}
		s.Metadata = meta
	}

	return s, nil
}
