package goSession

import (
	"context"
	"errors"
	"fmt"
)

// IssueToken signs a session token for sess. The token carries the session
// id, address and chain, and is only honored while the session exists.
func (s *Service) IssueToken(ctx context.Context, sess *Session) (string, error) {
	if s.closed.Load() {
		return "", ErrServiceClosed
	}
	if s.tokens == nil {
		return "", ErrTokenDisabled
	}
	if sess == nil {
		return "", validationError(ErrInvalidSessionID)
	}

	token, err := s.tokens.Create(sess.ID, sess.Address, sess.ChainID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrValidation, err)
	}

	s.metrics.Inc(MetricTokenIssued)
	s.emitAudit(ctx, AuditEvent{
		EventType: auditEventTokenIssued,
		SessionID: sess.ID,
		Address:   sess.Address,
		ChainID:   sess.ChainID,
	}, nil)
	return token, nil
}

// SessionFromToken verifies token and returns the session it names, touching
// its activity like [Service.GetSession].
//
// A token whose session was disconnected or expired is rejected with
// [ErrSessionNotFound]; a token whose claims no longer match the stored
// session is rejected with [ErrTokenInvalid].
func (s *Service) SessionFromToken(ctx context.Context, token string) (*Session, error) {
	if s.closed.Load() {
		return nil, ErrServiceClosed
	}
	if s.tokens == nil {
		return nil, ErrTokenDisabled
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, s.rejectToken(ctx, "", errors.Join(ErrTokenInvalid, err))
	}

	sess, err := s.GetSession(ctx, claims.SID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, s.rejectToken(ctx, claims.SID, err)
		}
		return nil, err
	}
	if sess.Address != claims.Address {
		return nil, s.rejectToken(ctx, claims.SID, ErrTokenInvalid)
	}

	return sess, nil
}

func (s *Service) rejectToken(ctx context.Context, sessionID string, err error) error {
	s.metrics.Inc(MetricTokenRejected)
	s.emitAudit(ctx, AuditEvent{
		EventType: auditEventTokenRejected,
		SessionID: sessionID,
	}, err)
	return err
}
