package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/cityflow/cityflow/internal/domain"
)

var tracer = otel.Tracer("usecase")

// Effects carries the post-commit side effects shared by the usecases.
// Every method is best-effort: failures are logged and never returned.
type Effects struct {
	audit    AuditRepository
	events   EventPublisher
	notifier Notifier
	users    UserRepository
}

func NewEffects(audit AuditRepository, events EventPublisher, notifier Notifier, users UserRepository) *Effects {
	return &Effects{
		audit:    audit,
		events:   events,
		notifier: notifier,
		users:    users,
	}
}

func (e *Effects) Audit(ctx context.Context, entry domain.AuditLog) {
	if e == nil || e.audit == nil {
		return
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if err := e.audit.Create(ctx, entry); err != nil {
		slog.WarnContext(
			ctx, "audit log write failed",
			slog.String("action", entry.Action),
			slog.String("error", err.Error()),
			slog.String("module", "audit"),
		)
	}
}

func (e *Effects) Publish(ctx context.Context, event domain.Event) {
	if e == nil || e.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := e.events.Publish(ctx, event); err != nil {
		slog.WarnContext(
			ctx, "event publish failed",
			slog.String("type", event.Type),
			slog.Int64("complaint", event.ComplaintID),
			slog.String("error", err.Error()),
			slog.String("module", "signal"),
		)
	}
}

// NotifyUser looks the user up and hands a message to the notifier.
func (e *Effects) NotifyUser(ctx context.Context, userID int64, subject, body string) {
	if e == nil || e.notifier == nil || e.users == nil {
		return
	}
	user, err := e.users.Get(ctx, userID)
	if err != nil {
		slog.WarnContext(
			ctx, "notification recipient lookup failed",
			slog.Int64("user", userID),
			slog.String("error", err.Error()),
			slog.String("module", "notify"),
		)
		return
	}
	if user.Email == "" {
		return
	}
	e.notifier.Notify(ctx, domain.Notification{
		To:      user.Email,
		Subject: subject,
		Body:    body,
	})
}

func statusChangedMail(c domain.Complaint) (string, string) {
	subject := fmt.Sprintf("Şikayetiniz güncellendi (#%d)", c.ID)
	body := fmt.Sprintf("Şikayetinizin durumu: %s", c.Status)
	if c.Status == domain.ComplaintRejected && c.RejectReason != nil {
		body += fmt.Sprintf("\nRed nedeni: %s", *c.RejectReason)
	}
	return subject, body
}

func assignedMail(a domain.Assignment) (string, string) {
	subject := fmt.Sprintf("Yeni görev atandı (#%d)", a.ID)
	body := fmt.Sprintf("Size #%d numaralı şikayet için yeni bir görev atandı.", a.ComplaintID)
	return subject, body
}
