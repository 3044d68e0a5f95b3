// Package notify delivers report outcome notifications to users and
// downstream systems.
package notify

import (
	"context"
	"errors"

	domain "github.com/maidige/consultation-admin/internal/domain/reporting"
	"github.com/maidige/consultation-admin/pkg/common/logger"
)

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = Multi(nil)
)

// LogNotifier writes each notification as a structured log line. Error
// notifications are logged at warn level.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// Notify implements domain.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, note domain.Notification) error {
	args := []any{
		"notification_level", note.Level,
		"entity_key", note.EntityKey,
		"job_id", note.JobID,
		"status", note.Status,
	}
	if note.Level == domain.NotificationError {
		n.logger.Warn(ctx, note.Message, args...)
		return nil
	}
	n.logger.Info(ctx, note.Message, args...)
	return nil
}

// Multi fans a notification out to every notifier. All notifiers are called
// even when some fail; the failures are joined.
type Multi []domain.Notifier

// Notify implements domain.Notifier.
func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
