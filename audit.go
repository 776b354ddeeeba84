package goSession

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// AuditEvent is one session lifecycle record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events from the [Service] dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel; read them with Events.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] on w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink returns a sink that writes events to logger.
func NewSlogSink(logger *slog.Logger) AuditSink {
	return audit.NewSlogSink(logger)
}

// MultiSink fans events out to every sink.
func MultiSink(sinks ...AuditSink) AuditSink {
	return audit.MultiSink(sinks)
}

// AuditRepeatsKey is set in the metadata of a rate-limit or token-rejection
// event that stands for several identical events queued while the sink was
// busy.
const AuditRepeatsKey = audit.RepeatsKey

const (
	auditEventSessionCreated      = "session_created"
	auditEventSessionCreateFailed = "session_create_failed"
	auditEventSessionUpdated      = "session_updated"
	auditEventSessionDisconnected = "session_disconnected"
	auditEventReconcileCompleted  = "reconcile_completed"
	auditEventRateLimitTriggered  = "rate_limit_triggered"
	auditEventTokenIssued         = "token_issued"
	auditEventTokenRejected       = "token_rejected"
)

// AuditErrorCode is the stable error label recorded on failed events.
type AuditErrorCode string

const (
	auditErrValidation      AuditErrorCode = "validation"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrCorrupt         AuditErrorCode = "corrupt_record"
	auditErrIndexDegraded   AuditErrorCode = "index_degraded"
	auditErrInvalidToken    AuditErrorCode = "invalid_token"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (s *Service) emitAudit(ctx context.Context, event AuditEvent, err error) {
	if s == nil || s.audit == nil {
		return
	}
	if event.IP == "" {
		event.IP = ClientIPFromContext(ctx)
	}
	event.Success = err == nil
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	s.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, session.ErrDecode):
		return auditErrCorrupt
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, session.ErrIndexDegraded):
		return auditErrIndexDegraded
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrBackendUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
