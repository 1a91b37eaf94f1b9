package domain

import "context"

// RequestField names a request attribute that can be queried.
type RequestField string

const (
	FieldPetID     RequestField = "pet_id"
	FieldAdopterID RequestField = "adopter_id"
	FieldStatus    RequestField = "status"
)

// RecordStore is the durable keyed storage for pets and adoption requests.
// Reads return version tokens; Commit is the only write path.
type RecordStore interface {
	GetPet(ctx context.Context, id string) (Versioned[Pet], error)
	GetRequest(ctx context.Context, id string) (Versioned[AdoptionRequest], error)
	QueryRequests(ctx context.Context, field RequestField, value string) ([]Versioned[AdoptionRequest], error)
	// RequestSetVersion returns the version of the pet's request collection.
	RequestSetVersion(ctx context.Context, petID string) (Version, error)
	Committer
}

// Committer applies a ChangeSet atomically. It returns ErrVersionConflict
// (possibly wrapped) when any expected version no longer holds.
type Committer interface {
	Commit(ctx context.Context, cs ChangeSet) error
}

// PetCatalog is the typed accessor for pets.
type PetCatalog interface {
	Get(ctx context.Context, id string) (Versioned[Pet], error)
	Put(ctx context.Context, pet Pet, expected Version) error
}

// RequestStore is the typed accessor for adoption requests.
type RequestStore interface {
	Get(ctx context.Context, id string) (Versioned[AdoptionRequest], error)
	QueryByField(ctx context.Context, field RequestField, value string) ([]Versioned[AdoptionRequest], error)
	// ForPet returns every request of the pet with the collection version.
	ForPet(ctx context.Context, petID string) (RequestSet, error)
	Put(ctx context.Context, req AdoptionRequest, expected Version) error
}

// TransitionValidator checks request transitions and returns the new status.
type TransitionValidator interface {
	Apply(ctx context.Context, current RequestStatus, event RequestEvent) (RequestStatus, error)
}

// NotificationSink receives request events after they are committed.
// Deliveries are best effort; errors never undo a committed decision.
type NotificationSink interface {
	OnRequestCreated(ctx context.Context, req AdoptionRequest, pet Pet) error
	OnRequestApproved(ctx context.Context, req AdoptionRequest, pet Pet) error
	OnRequestRejected(ctx context.Context, req AdoptionRequest, pet Pet) error
}

// OwnershipChecker answers whether a caller owns a pet. Callers of Decide
// consult it before invoking the engine.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, petID, callerID string) (bool, error)
}
