package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"stepup-gateway/internal/audit/domain"
	auditrepo "stepup-gateway/internal/audit/repository"
)

// Actions recorded on the step-up surface.
const (
	ActionStepUpBegin       = "stepup_begin"
	ActionEnrollmentStarted = "enrollment_started"
	ActionCleanupFailed     = "cleanup_failed"
	ActionChallengeIssued   = "challenge_issued"
	ActionCodeRejected      = "code_rejected"
	ActionVerified          = "verified"
	ActionRecoveryRedeemed  = "recovery_redeemed"
	ActionRecoveryRejected  = "recovery_rejected"
	ActionAccessDenied      = "access_denied"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, adminID, sessionID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, adminID, sessionID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		AdminID:   adminID,
		SessionID: sessionID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
