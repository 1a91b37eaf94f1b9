package domain

import "errors"

// ErrVersionConflict is returned by a RecordStore when a commit's expected
// versions no longer match what is stored. Nothing from the commit is applied.
var ErrVersionConflict = errors.New("version conflict")

// Version is an opaque token that changes on every write of a record.
// The zero Version means the record has never been stored.
type Version int64

// Versioned pairs a record with the version it was read at.
type Versioned[T any] struct {
	Record  T
	Version Version
}

// RecordKind names the keyed record families a ChangeSet can reference.
type RecordKind string

const (
	KindPet     RecordKind = "pet"
	KindRequest RecordKind = "adoption_request"
	// KindRequestSet is the per-pet collection of requests, keyed by pet id.
	// Its version moves whenever a request is inserted for the pet.
	KindRequestSet RecordKind = "adoption_request_set"
)

// Check asserts that a record read during a unit of work is still at Version.
type Check struct {
	Kind    RecordKind
	ID      string
	Version Version
}

// PetWrite replaces a pet if its stored version equals Expected.
// An Expected of zero inserts a pet that must not exist yet.
type PetWrite struct {
	Pet      Pet
	Expected Version
}

// RequestWrite replaces a request if its stored version equals Expected.
// An Expected of zero inserts the request and bumps its pet's request set.
type RequestWrite struct {
	Request  AdoptionRequest
	Expected Version
}

// ChangeSet is one compare-and-swap unit of work: every check and every
// write's expected version must hold at commit time, or nothing is written.
type ChangeSet struct {
	Checks   []Check
	Pets     []PetWrite
	Requests []RequestWrite
}

// Expect adds a version check for a record that is read but not written.
func (c *ChangeSet) Expect(kind RecordKind, id string, v Version) {
	c.Checks = append(c.Checks, Check{Kind: kind, ID: id, Version: v})
}

// PutPet stages a pet write guarded by expected.
func (c *ChangeSet) PutPet(p Pet, expected Version) {
	c.Pets = append(c.Pets, PetWrite{Pet: p, Expected: expected})
}

// PutRequest stages a request write guarded by expected.
func (c *ChangeSet) PutRequest(r AdoptionRequest, expected Version) {
	c.Requests = append(c.Requests, RequestWrite{Request: r, Expected: expected})
}

// Empty reports whether the change set writes nothing.
func (c ChangeSet) Empty() bool {
	return len(c.Pets) == 0 && len(c.Requests) == 0
}

// RequestSet is the snapshot of all requests for one pet together with the
// collection version it was read at.
type RequestSet struct {
	PetID    string
	Requests []Versioned[AdoptionRequest]
	Version  Version
}

// Pending returns the requests still awaiting a decision, skipping excludeID.
func (s RequestSet) Pending(excludeID string) []Versioned[AdoptionRequest] {
	var out []Versioned[AdoptionRequest]
	for _, r := range s.Requests {
		if r.Record.Status == RequestPending && r.Record.ID != excludeID {
			out = append(out, r)
		}
	}
	return out
}

// PendingFor returns the pending request of adopterID, if any.
func (s RequestSet) PendingFor(adopterID string) (Versioned[AdoptionRequest], bool) {
	for _, r := range s.Requests {
		if r.Record.Status == RequestPending && r.Record.AdopterID == adopterID {
			return r, true
		}
	}
	return Versioned[AdoptionRequest]{}, false
}
