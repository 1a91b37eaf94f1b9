// Package memory provides an in-process RecordStore with the same
// compare-and-swap semantics as the SQLite adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Compile-time check: Store implements domain.RecordStore.
var _ domain.RecordStore = (*Store)(nil)

type petRow struct {
	pet        domain.Pet
	version    domain.Version
	setVersion domain.Version
}

type requestRow struct {
	req     domain.AdoptionRequest
	version domain.Version
}

// Store keeps pets and requests in maps guarded by a single lock, so a
// Commit is validated and applied as one step.
type Store struct {
	mu       sync.RWMutex
	pets     map[string]petRow
	requests map[string]requestRow
}

// New returns an empty store.
func New() *Store {
	return &Store{
		pets:     make(map[string]petRow),
		requests: make(map[string]requestRow),
	}
}

func (s *Store) GetPet(_ context.Context, id string) (domain.Versioned[domain.Pet], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.pets[id]
	if !ok {
		return domain.Versioned[domain.Pet]{}, &domain.NotFoundError{Kind: domain.KindPet, ID: id}
	}
	return domain.Versioned[domain.Pet]{Record: row.pet, Version: row.version}, nil
}

func (s *Store) GetRequest(_ context.Context, id string) (domain.Versioned[domain.AdoptionRequest], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.requests[id]
	if !ok {
		return domain.Versioned[domain.AdoptionRequest]{}, &domain.NotFoundError{Kind: domain.KindRequest, ID: id}
	}
	return domain.Versioned[domain.AdoptionRequest]{Record: row.req, Version: row.version}, nil
}

func (s *Store) QueryRequests(_ context.Context, field domain.RequestField, value string) ([]domain.Versioned[domain.AdoptionRequest], error) {
	match, err := matcher(field, value)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Versioned[domain.AdoptionRequest]
	for _, row := range s.requests {
		if match(row.req) {
			out = append(out, domain.Versioned[domain.AdoptionRequest]{Record: row.req, Version: row.version})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Record, out[j].Record
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID < b.ID
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	return out, nil
}

func (s *Store) RequestSetVersion(_ context.Context, petID string) (domain.Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.pets[petID]
	if !ok {
		return 0, &domain.NotFoundError{Kind: domain.KindPet, ID: petID}
	}
	return row.setVersion, nil
}

// Commit validates every check and expected version before touching any map.
func (s *Store) Commit(_ context.Context, cs domain.ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(cs); err != nil {
		return err
	}

	for _, w := range cs.Pets {
		row := s.pets[w.Pet.ID]
		row.pet = w.Pet
		row.version = w.Expected + 1
		s.pets[w.Pet.ID] = row
	}

	for _, w := range cs.Requests {
		s.requests[w.Request.ID] = requestRow{req: w.Request, version: w.Expected + 1}
		if w.Expected == 0 {
			row := s.pets[w.Request.PetID]
			row.setVersion++
			s.pets[w.Request.PetID] = row
		}
	}

	return nil
}

func (s *Store) validate(cs domain.ChangeSet) error {
	for _, c := range cs.Checks {
		if s.versionOf(c.Kind, c.ID) != c.Version {
			return fmt.Errorf("%s %q: %w", c.Kind, c.ID, domain.ErrVersionConflict)
		}
	}

	for _, w := range cs.Pets {
		if s.versionOf(domain.KindPet, w.Pet.ID) != w.Expected {
			return fmt.Errorf("pet %q: %w", w.Pet.ID, domain.ErrVersionConflict)
		}
	}

	for _, w := range cs.Requests {
		if s.versionOf(domain.KindRequest, w.Request.ID) != w.Expected {
			return fmt.Errorf("request %q: %w", w.Request.ID, domain.ErrVersionConflict)
		}
		if w.Expected == 0 {
			if _, ok := s.pets[w.Request.PetID]; !ok {
				return &domain.NotFoundError{Kind: domain.KindPet, ID: w.Request.PetID}
			}
			if w.Request.Status == domain.RequestPending && s.hasPending(w.Request.PetID, w.Request.AdopterID) {
				return &domain.DuplicateRequestError{PetID: w.Request.PetID, AdopterID: w.Request.AdopterID}
			}
		}
	}

	return nil
}

// versionOf returns zero for records that do not exist.
func (s *Store) versionOf(kind domain.RecordKind, id string) domain.Version {
	switch kind {
	case domain.KindPet:
		return s.pets[id].version
	case domain.KindRequest:
		return s.requests[id].version
	case domain.KindRequestSet:
		return s.pets[id].setVersion
	default:
		return -1
	}
}

func (s *Store) hasPending(petID, adopterID string) bool {
	for _, row := range s.requests {
		if row.req.PetID == petID && row.req.AdopterID == adopterID && row.req.Status == domain.RequestPending {
			return true
		}
	}
	return false
}

func matcher(field domain.RequestField, value string) (func(domain.AdoptionRequest) bool, error) {
	switch field {
	case domain.FieldPetID:
		return func(r domain.AdoptionRequest) bool { return r.PetID == value }, nil
	case domain.FieldAdopterID:
		return func(r domain.AdoptionRequest) bool { return r.AdopterID == value }, nil
	case domain.FieldStatus:
		return func(r domain.AdoptionRequest) bool { return string(r.Status) == value }, nil
	default:
		return nil, &domain.ValidationError{Field: "field", Reason: fmt.Sprintf("cannot query requests by %q", field)}
	}
}
