package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session id is absent or expired.
	ErrNotFound = errors.New("session not found")
	// ErrDecode marks stored bytes that do not parse as a session.
	ErrDecode = errors.New("session decode failed")
	// ErrMetadataTooLarge is returned when encoded metadata exceeds the cap.
	ErrMetadataTooLarge = errors.New("session metadata too large")
	// ErrMetadataInvalid is returned when metadata cannot be encoded as JSON.
	ErrMetadataInvalid = errors.New("session metadata not encodable")
	// ErrInvalidSession is returned when a session lacks its id or address.
	ErrInvalidSession = errors.New("invalid session")
	// ErrIndexDegraded is returned by Create when the record was written but
	// the address index write failed. The record is readable by id and the
	// next reconciliation sweep restores index membership.
	ErrIndexDegraded = errors.New("session persisted but address index write failed")
)

// DecodeError describes a stored record that could not be decoded.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("session decode: field %q: %v", e.Field, e.Err)
	case e.Field != "":
		return fmt.Sprintf("session decode: missing required field %q", e.Field)
	case e.Err != nil:
		return fmt.Sprintf("session decode: %v", e.Err)
	default:
		return ErrDecode.Error()
	}
}

// Unwrap exposes both ErrDecode and the underlying cause to errors.Is.
func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDecode}
	}
	return []error{ErrDecode, e.Err}
}
