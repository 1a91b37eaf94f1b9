package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neomorfeo/adoptiq/internal/adapter/sqlite"
	"github.com/neomorfeo/adoptiq/internal/domain"
)

// newTestStore creates an in-memory SQLite store for testing.
func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustCommit(t *testing.T, store *sqlite.Store, cs domain.ChangeSet) {
	t.Helper()
	if err := store.Commit(context.Background(), cs); err != nil {
		t.Fatalf("mustCommit failed: %v", err)
	}
}

func seedPet(t *testing.T, store *sqlite.Store, id string) domain.Pet {
	t.Helper()
	pet := domain.NewPet(id, "Rex", "owner-1")
	var cs domain.ChangeSet
	cs.PutPet(pet, 0)
	mustCommit(t, store, cs)
	return pet
}

func newRequest(id, petID, adopterID string) domain.AdoptionRequest {
	return domain.NewAdoptionRequest(id, petID, adopterID, domain.AdopterDetails{
		Name:   "Ana",
		Email:  "ana@example.com",
		Phone:  "5551234567",
		Reason: "big yard",
	}, time.Now().UTC())
}

func seedRequest(t *testing.T, store *sqlite.Store, req domain.AdoptionRequest) {
	t.Helper()
	var cs domain.ChangeSet
	cs.PutRequest(req, 0)
	mustCommit(t, store, cs)
}

func TestPet_InsertAndGet(t *testing.T) {
	store := newTestStore(t)
	seedPet(t, store, "p-1")

	got, err := store.GetPet(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("GetPet failed: %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.Record.Status != domain.PetAvailable {
		t.Errorf("Status = %q, want %q", got.Record.Status, domain.PetAvailable)
	}
	if got.Record.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want %q", got.Record.OwnerID, "owner-1")
	}
	if !got.Record.AdoptedAt.IsZero() {
		t.Error("AdoptedAt should be zero for an available pet")
	}
}

func TestGetPet_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPet(context.Background(), "nonexistent")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetRequest_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRequest(context.Background(), "nonexistent")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) || nf.Kind != domain.KindRequest {
		t.Errorf("expected request NotFoundError, got %v", err)
	}
}

func TestRequest_InsertBumpsRequestSet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPet(t, store, "p-1")

	before, err := store.RequestSetVersion(ctx, "p-1")
	if err != nil {
		t.Fatalf("RequestSetVersion failed: %v", err)
	}

	req := newRequest("r-1", "p-1", "a-1")
	seedRequest(t, store, req)

	after, _ := store.RequestSetVersion(ctx, "p-1")
	if after != before+1 {
		t.Errorf("request set version = %d, want %d", after, before+1)
	}

	got, err := store.GetRequest(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	if got.Version != 1 || got.Record.Status != domain.RequestPending {
		t.Errorf("got version %d status %q", got.Version, got.Record.Status)
	}
	if !got.Record.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.Record.CreatedAt, req.CreatedAt)
	}
	if got.Record.Adopter != req.Adopter {
		t.Errorf("Adopter = %+v, want %+v", got.Record.Adopter, req.Adopter)
	}

	// Pet's own version is untouched by request inserts.
	pet, _ := store.GetPet(ctx, "p-1")
	if pet.Version != 1 {
		t.Errorf("pet version = %d, want 1", pet.Version)
	}
}

func TestRequest_InsertForUnknownPet(t *testing.T) {
	store := newTestStore(t)

	var cs domain.ChangeSet
	cs.PutRequest(newRequest("r-1", "ghost", "a-1"), 0)
	err := store.Commit(context.Background(), cs)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRequest_DuplicatePendingRejectedByIndex(t *testing.T) {
	store := newTestStore(t)
	seedPet(t, store, "p-1")
	seedRequest(t, store, newRequest("r-1", "p-1", "a-1"))

	var cs domain.ChangeSet
	cs.PutRequest(newRequest("r-2", "p-1", "a-1"), 0)
	err := store.Commit(context.Background(), cs)

	var dup *domain.DuplicateRequestError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateRequestError, got %v", err)
	}

	if _, err := store.GetRequest(context.Background(), "r-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("r-2 should not exist, got %v", err)
	}
}

func TestCommit_StaleVersionConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pet := seedPet(t, store, "p-1")

	adopted, _ := pet.Adopt("a-1", time.Now().UTC())
	var first domain.ChangeSet
	first.PutPet(adopted, 1)
	mustCommit(t, store, first)

	var second domain.ChangeSet
	second.PutPet(adopted, 1)
	err := store.Commit(ctx, second)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := store.GetPet(ctx, "p-1")
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.Record.AdoptedBy != "a-1" {
		t.Errorf("AdoptedBy = %q, want %q", got.Record.AdoptedBy, "a-1")
	}
}

func TestCommit_AllOrNothing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pet := seedPet(t, store, "p-1")
	req := newRequest("r-1", "p-1", "a-1")
	seedRequest(t, store, req)

	now := time.Now().UTC()
	adopted, _ := pet.Adopt("a-1", now)

	// The request write is stale, so the pet write must not land either.
	var cs domain.ChangeSet
	cs.PutPet(adopted, 1)
	cs.PutRequest(req.Decided(domain.RequestApproved, "owner-1", now), 7)

	err := store.Commit(ctx, cs)
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _ := store.GetPet(ctx, "p-1")
	if got.Record.Status != domain.PetAvailable || got.Version != 1 {
		t.Errorf("pet changed after failed commit: %+v", got)
	}
}

func TestCommit_RequestSetCheck(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPet(t, store, "p-1")

	setVersion, _ := store.RequestSetVersion(ctx, "p-1")
	seedRequest(t, store, newRequest("r-1", "p-1", "a-1"))

	var cs domain.ChangeSet
	cs.Expect(domain.KindRequestSet, "p-1", setVersion)
	cs.PutRequest(newRequest("r-2", "p-1", "a-2"), 0)

	if err := store.Commit(ctx, cs); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestCommit_DecideRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPet(t, store, "p-1")
	req := newRequest("r-1", "p-1", "a-1")
	seedRequest(t, store, req)

	decidedAt := time.Now().UTC()
	var cs domain.ChangeSet
	cs.PutRequest(req.Decided(domain.RequestRejected, "owner-1", decidedAt), 1)
	mustCommit(t, store, cs)

	got, _ := store.GetRequest(ctx, "r-1")
	if got.Version != 2 {
		t.Errorf("Version = %d, want 2", got.Version)
	}
	if got.Record.Status != domain.RequestRejected {
		t.Errorf("Status = %q, want %q", got.Record.Status, domain.RequestRejected)
	}
	if got.Record.DecidedBy != "owner-1" || !got.Record.DecidedAt.Equal(decidedAt) {
		t.Errorf("decision not stored: %+v", got.Record)
	}
}

func TestQueryRequests(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPet(t, store, "p-1")
	seedPet(t, store, "p-2")
	seedRequest(t, store, newRequest("r-1", "p-1", "a-1"))
	seedRequest(t, store, newRequest("r-2", "p-1", "a-2"))
	seedRequest(t, store, newRequest("r-3", "p-2", "a-1"))

	byPet, err := store.QueryRequests(ctx, domain.FieldPetID, "p-1")
	if err != nil {
		t.Fatalf("QueryRequests failed: %v", err)
	}
	if len(byPet) != 2 {
		t.Errorf("got %d requests for p-1, want 2", len(byPet))
	}

	byAdopter, _ := store.QueryRequests(ctx, domain.FieldAdopterID, "a-1")
	if len(byAdopter) != 2 {
		t.Errorf("got %d requests for a-1, want 2", len(byAdopter))
	}

	pending, _ := store.QueryRequests(ctx, domain.FieldStatus, string(domain.RequestPending))
	if len(pending) != 3 {
		t.Errorf("got %d pending requests, want 3", len(pending))
	}
}

func TestQueryRequests_UnknownField(t *testing.T) {
	store := newTestStore(t)

	_, err := store.QueryRequests(context.Background(), domain.RequestField("reason; DROP TABLE pets"), "x")
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestWithTimeout_ExpiredContextIsTransient(t *testing.T) {
	dbPath := t.TempDir() + "/timeout.db"
	store, err := sqlite.New(dbPath, sqlite.WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err = store.GetPet(ctx, "p-1")
	if !domain.IsTransient(err) {
		t.Errorf("expected transient storage error, got %v", err)
	}
}
