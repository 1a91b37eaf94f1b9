// Package store holds the typed accessors the workflow engine depends on.
// They add no business rules; every write is a single-record ChangeSet.
package store

import (
	"context"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Compile-time checks.
var (
	_ domain.PetCatalog       = (*PetCatalog)(nil)
	_ domain.OwnershipChecker = (*PetCatalog)(nil)
)

// PetCatalog reads and writes pets through a domain.RecordStore.
type PetCatalog struct {
	records domain.RecordStore
}

// NewPetCatalog creates a catalog over records.
func NewPetCatalog(records domain.RecordStore) *PetCatalog {
	return &PetCatalog{records: records}
}

// Get returns the pet with the version it was read at.
func (c *PetCatalog) Get(ctx context.Context, id string) (domain.Versioned[domain.Pet], error) {
	return c.records.GetPet(ctx, id)
}

// Put writes pet if its stored version still equals expected (zero inserts).
func (c *PetCatalog) Put(ctx context.Context, pet domain.Pet, expected domain.Version) error {
	var cs domain.ChangeSet
	cs.PutPet(pet, expected)
	return c.records.Commit(ctx, cs)
}

// IsOwner reports whether callerID listed the pet.
func (c *PetCatalog) IsOwner(ctx context.Context, petID, callerID string) (bool, error) {
	pet, err := c.records.GetPet(ctx, petID)
	if err != nil {
		return false, err
	}
	return callerID != "" && pet.Record.OwnerID == callerID, nil
}
