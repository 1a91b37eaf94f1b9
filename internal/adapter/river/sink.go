package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Compile-time check: Sink implements domain.NotificationSink.
var _ domain.NotificationSink = (*Sink)(nil)

// NotificationJobArgs carries one rendered notification. River serializes it
// as JSON into its job table, so the worker never reads the pet or request
// back from the database.
type NotificationJobArgs struct {
	NotificationKind string `json:"kind"`
	RecipientID      string `json:"recipient_id"`
	PetID            string `json:"pet_id"`
	PetName          string `json:"pet_name"`
	RequestID        string `json:"request_id"`
	AdopterID        string `json:"adopter_id"`
	Message          string `json:"message"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (NotificationJobArgs) Kind() string { return "adoption.notification" }

// InsertOpts bounds redelivery of a notification.
func (NotificationJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 5}
}

func (a NotificationJobArgs) notification() domain.Notification {
	return domain.Notification{
		Kind:        domain.NotificationKind(a.NotificationKind),
		RecipientID: a.RecipientID,
		PetID:       a.PetID,
		PetName:     a.PetName,
		RequestID:   a.RequestID,
		AdopterID:   a.AdopterID,
		Message:     a.Message,
	}
}

func jobArgs(n domain.Notification) NotificationJobArgs {
	return NotificationJobArgs{
		NotificationKind: string(n.Kind),
		RecipientID:      n.RecipientID,
		PetID:            n.PetID,
		PetName:          n.PetName,
		RequestID:        n.RequestID,
		AdopterID:        n.AdopterID,
		Message:          n.Message,
	}
}

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Sink implements domain.NotificationSink by enqueuing River jobs.
type Sink struct {
	client *Client
}

// NewSink creates a sink backed by the given River client.
func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

func (s *Sink) OnRequestCreated(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	return s.enqueue(ctx, domain.NewNotification(domain.NotifyRequestCreated, req, pet))
}

func (s *Sink) OnRequestApproved(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	return s.enqueue(ctx, domain.NewNotification(domain.NotifyRequestApproved, req, pet))
}

func (s *Sink) OnRequestRejected(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	return s.enqueue(ctx, domain.NewNotification(domain.NotifyRequestRejected, req, pet))
}

func (s *Sink) enqueue(ctx context.Context, n domain.Notification) error {
	if _, err := s.client.Insert(ctx, jobArgs(n), nil); err != nil {
		return fmt.Errorf("enqueuing %s notification for request %q: %w", n.Kind, n.RequestID, err)
	}
	return nil
}
