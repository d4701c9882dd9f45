package goAuthClient

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/session"
)

// Audit event types emitted by the Client.
const (
	AuditLoginSuccess   = "login_success"
	AuditLoginFailure   = "login_failure"
	AuditRegister       = "register"
	AuditRefreshSuccess = "refresh_success"
	AuditRefreshFailure = "refresh_failure"
	AuditForcedLogout   = "forced_logout"
	AuditLogout         = "logout"
)

type (
	AuditEvent     = audit.Event
	AuditSink      = audit.Sink
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	LogSink        = audit.LogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink writes audit events as info-level zerolog records.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}

// emitAudit records one event for sess. sess may be nil.
func (c *Client) emitAudit(ctx context.Context, eventType string, sess *session.Session, err error, metadata map[string]string) {
	if c.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: c.clock.Now().UTC(),
		EventType: eventType,
		Success:   err == nil,
		Metadata:  metadata,
	}
	if sess != nil {
		event.UserID = sess.User.ID
		event.Role = string(sess.User.Role)
		event.TrackingID = sess.TrackingID
	}
	if err != nil {
		event.Error = err.Error()
	}

	if ctx == nil {
		ctx = context.Background()
	}
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	c.audit.Emit(emitCtx, event)
}
