package credlife

import (
	"io"
	"log/slog"

	internalaudit "github.com/MrEthical07/credlife/internal/audit"
)

// AuditEvent is one credential lifecycle record. Token strings and code values are
// never included.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

type (
	NoOpSink       = internalaudit.NoOpSink
	ChannelSink    = internalaudit.ChannelSink
	JSONWriterSink = internalaudit.JSONWriterSink
	SlogSink       = internalaudit.SlogSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}

const (
	AuditSessionIssued    = "session_issued"
	AuditSessionRotated   = "session_rotated"
	AuditRotationRejected = "rotation_rejected"
	AuditSessionRevoked   = "session_revoked"
	AuditSubjectRevoked   = "subject_revoked"
	AuditTokenRejected    = "token_rejected"
	AuditCodeCreated      = "code_created"
	AuditCodeThrottled    = "code_throttled"
	AuditCodeVerified     = "code_verified"
	AuditCodeRejected     = "code_rejected"
	AuditLoginSuccess     = "login_success"
	AuditLoginFailure     = "login_failure"
	AuditAccountCreated   = "account_created"
	AuditEmailVerified    = "email_verified"
	AuditPasswordReset    = "password_reset"
	AuditResetRequested   = "password_reset_requested"
	AuditStoreUnavailable = "store_unavailable"
)
