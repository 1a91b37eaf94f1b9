package domain

import "time"

// PetStatus represents whether a pet can still be adopted.
type PetStatus string

const (
	PetAvailable PetStatus = "available"
	PetAdopted   PetStatus = "adopted"
)

// Pet is a listed animal. The engine only ever moves it from available to adopted.
type Pet struct {
	ID        string
	Name      string
	OwnerID   string
	Status    PetStatus
	AdoptedBy string
	AdoptedAt time.Time
	CreatedAt time.Time
}

// NewPet creates a pet in the initial "available" state.
func NewPet(id, name, ownerID string) Pet {
	return Pet{
		ID:        id,
		Name:      name,
		OwnerID:   ownerID,
		Status:    PetAvailable,
		CreatedAt: time.Now().UTC(),
	}
}

// Available reports whether the pet still accepts and can grant requests.
func (p Pet) Available() bool {
	return p.Status == PetAvailable
}

// Adopt returns a copy of the pet marked as adopted by adopterID.
func (p Pet) Adopt(adopterID string, at time.Time) (Pet, error) {
	if !p.Available() {
		return Pet{}, &PetUnavailableError{PetID: p.ID, Status: p.Status}
	}
	p.Status = PetAdopted
	p.AdoptedBy = adopterID
	p.AdoptedAt = at
	return p, nil
}
