package credlife

import (
	"context"
	"errors"
	"strings"
)

// auditEvent describes one emitted record. Empty fields are omitted.
type auditEvent struct {
	eventType string
	success   bool
	subject   string
	tokenType TokenType
	purpose   Purpose
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, ev auditEvent) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: ev.eventType,
		Subject:   ev.subject,
		TokenType: string(ev.tokenType),
		Purpose:   string(ev.purpose),
		IP:        clientIPFromContext(ctx),
		Success:   ev.success,
		Error:     auditErrorCode(ev.err),
		Metadata:  ev.metadata,
	}
	e.audit.Emit(ctx, event)
}

// auditErrorCode turns err into a stable snake_case code. Wrapped causes are not
// exposed.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var lifecycle *Error
	if errors.As(err, &lifecycle) {
		return strings.ReplaceAll(lifecycle.Kind.String(), " ", "_")
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrLoginRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrAccountExists):
		return "duplicate"
	case errors.Is(err, ErrAccountUnverified):
		return "account_unverified"
	case errors.Is(err, ErrPrincipalNotFound):
		return "principal_not_found"
	case errors.Is(err, ErrAccountRequestInvalid):
		return "invalid_request"
	default:
		return "internal_error"
	}
}
