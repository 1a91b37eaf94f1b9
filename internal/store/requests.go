package store

import (
	"context"
	"fmt"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Compile-time check: RequestStore implements domain.RequestStore.
var _ domain.RequestStore = (*RequestStore)(nil)

// RequestStore reads and writes adoption requests through a domain.RecordStore.
type RequestStore struct {
	records domain.RecordStore
}

// NewRequestStore creates a request store over records.
func NewRequestStore(records domain.RecordStore) *RequestStore {
	return &RequestStore{records: records}
}

// Get returns the request with the version it was read at.
func (s *RequestStore) Get(ctx context.Context, id string) (domain.Versioned[domain.AdoptionRequest], error) {
	return s.records.GetRequest(ctx, id)
}

// QueryByField returns every request whose field equals value.
func (s *RequestStore) QueryByField(ctx context.Context, field domain.RequestField, value string) ([]domain.Versioned[domain.AdoptionRequest], error) {
	return s.records.QueryRequests(ctx, field, value)
}

// ForPet returns the pet's requests together with the collection version.
// The version is read before the requests: a request inserted in between
// shows up in the list but leaves the version stale, so a commit asserting
// it fails rather than missing the newcomer.
func (s *RequestStore) ForPet(ctx context.Context, petID string) (domain.RequestSet, error) {
	version, err := s.records.RequestSetVersion(ctx, petID)
	if err != nil {
		return domain.RequestSet{}, fmt.Errorf("reading request set version: %w", err)
	}

	requests, err := s.records.QueryRequests(ctx, domain.FieldPetID, petID)
	if err != nil {
		return domain.RequestSet{}, fmt.Errorf("querying requests: %w", err)
	}

	return domain.RequestSet{PetID: petID, Requests: requests, Version: version}, nil
}

// Put writes req if its stored version still equals expected (zero inserts).
func (s *RequestStore) Put(ctx context.Context, req domain.AdoptionRequest, expected domain.Version) error {
	var cs domain.ChangeSet
	cs.PutRequest(req, expected)
	return s.records.Commit(ctx, cs)
}
