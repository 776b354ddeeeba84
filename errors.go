package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/kv"
	"github.com/MrEthical07/goSession/session"
)

var (
	// ErrValidation wraps every input rejection. Match it with errors.Is to
	// map a failure to a client error.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidAddress rejects a wallet address that is not 0x-prefixed
	// 40-digit hex.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrUnsupportedChain rejects a chain id outside the configured allow-list.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrInvalidMetadata rejects metadata that cannot be encoded or exceeds
	// the size cap.
	ErrInvalidMetadata = errors.New("invalid session metadata")
	// ErrInvalidSessionID rejects an empty session id.
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrRateLimited is returned when the caller exceeded the create rate.
	ErrRateLimited = errors.New("session creation rate limited")
	// ErrTokenDisabled is returned by token operations when no signing key is
	// configured.
	ErrTokenDisabled = errors.New("session tokens disabled")
	// ErrTokenInvalid is returned for tokens that fail verification or whose
	// claims no longer match the stored session.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrServiceClosed is returned by operations on a closed [Service].
	ErrServiceClosed = errors.New("session service closed")

	// ErrSessionNotFound is [session.ErrNotFound].
	ErrSessionNotFound = session.ErrNotFound
	// ErrBackendUnavailable is [kv.ErrBackendUnavailable].
	ErrBackendUnavailable = kv.ErrBackendUnavailable
)

func validationError(specific error) error {
	return errors.Join(ErrValidation, specific)
}
