package river_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	goriver "github.com/riverqueue/river"

	_ "modernc.org/sqlite"

	riveradapter "github.com/neomorfeo/adoptiq/internal/adapter/river"
	"github.com/neomorfeo/adoptiq/internal/domain"
)

type captureDeliverer struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (c *captureDeliverer) Deliver(_ context.Context, n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, n)
	return nil
}

func (c *captureDeliverer) delivered() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Notification(nil), c.got...)
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := t.TempDir() + "/river_test.db"
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		t.Fatalf("setting WAL: %v", err)
	}

	return db
}

func startClient(t *testing.T, deliverer riveradapter.Deliverer) (*riveradapter.Client, <-chan *goriver.Event) {
	t.Helper()

	client, err := riveradapter.Setup(context.Background(), setupTestDB(t), deliverer)
	if err != nil {
		t.Fatalf("river setup: %v", err)
	}

	// Subscribe before starting so no completion is missed.
	events, cancel := client.Subscribe(goriver.EventKindJobCompleted)
	t.Cleanup(cancel)

	if err := client.Start(context.Background()); err != nil {
		t.Fatalf("river start: %v", err)
	}
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Stop(stopCtx); err != nil {
			t.Errorf("river stop: %v", err)
		}
	})

	return client, events
}

func waitCompleted(t *testing.T, events <-chan *goriver.Event) *goriver.Event {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for job completion")
		return nil
	}
}

func fixtures() (domain.AdoptionRequest, domain.Pet) {
	pet := domain.NewPet("p-42", "Luna", "owner-7")
	req := domain.NewAdoptionRequest("r-9", pet.ID, "adopter-3",
		domain.AdopterDetails{Name: "Sam", Email: "sam@example.com", Reason: "Quiet home"},
		time.Now().UTC())
	return req, pet
}

func TestSink_OnRequestCreated_EnqueuesJob(t *testing.T) {
	deliverer := &captureDeliverer{}
	client, events := startClient(t, deliverer)
	req, pet := fixtures()

	if err := riveradapter.NewSink(client).OnRequestCreated(context.Background(), req, pet); err != nil {
		t.Fatalf("OnRequestCreated failed: %v", err)
	}

	event := waitCompleted(t, events)
	if event.Job.Kind != "adoption.notification" {
		t.Errorf("job kind = %q, want %q", event.Job.Kind, "adoption.notification")
	}

	got := deliverer.delivered()
	if len(got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(got))
	}
	if got[0].Kind != domain.NotifyRequestCreated || got[0].RecipientID != "owner-7" {
		t.Errorf("unexpected notification %+v", got[0])
	}
}

func TestSink_OnRequestApproved_PreservesNotificationData(t *testing.T) {
	client, events := startClient(t, &captureDeliverer{})
	req, pet := fixtures()

	if err := riveradapter.NewSink(client).OnRequestApproved(context.Background(), req, pet); err != nil {
		t.Fatalf("OnRequestApproved failed: %v", err)
	}

	event := waitCompleted(t, events)
	args := string(event.Job.EncodedArgs)
	for _, want := range []string{
		`"kind":"adoption_approved"`,
		`"recipient_id":"adopter-3"`,
		`"pet_id":"p-42"`,
		`"request_id":"r-9"`,
		`"pet_name":"Luna"`,
	} {
		if !strings.Contains(args, want) {
			t.Errorf("encoded args missing %s, got: %s", want, args)
		}
	}
}
