package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Deliverer hands a notification to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

// LogDeliverer records notifications in the application log. It stands in
// for an inbox or mailer.
type LogDeliverer struct{}

func (LogDeliverer) Deliver(ctx context.Context, n domain.Notification) error {
	slog.InfoContext(ctx, "notification delivered",
		"kind", n.Kind,
		"recipient_id", n.RecipientID,
		"request_id", n.RequestID,
		"pet_id", n.PetID,
		"message", n.Message,
	)
	return nil
}

// NotificationWorker processes notification jobs from the River queue.
// A delivery error makes River retry the job up to its MaxAttempts.
type NotificationWorker struct {
	river.WorkerDefaults[NotificationJobArgs]
	deliverer Deliverer
}

// Work delivers a single notification job.
func (w *NotificationWorker) Work(ctx context.Context, job *river.Job[NotificationJobArgs]) error {
	slog.DebugContext(ctx, "processing notification",
		"kind", job.Args.NotificationKind,
		"request_id", job.Args.RequestID,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return w.deliverer.Deliver(ctx, job.Args.notification())
}
