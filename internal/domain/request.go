package domain

import "time"

// RequestStatus represents the lifecycle state of an adoption request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether no transition can leave the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// RequestEvent represents an action that triggers a request transition.
type RequestEvent string

const (
	EventApprove RequestEvent = "approve"
	EventReject  RequestEvent = "reject"
	// EventSupersede rejects a pending sibling when another request wins the pet.
	EventSupersede RequestEvent = "supersede"
)

// Transition defines a valid state change: an event moves a request from Src to Dst.
type Transition struct {
	Event RequestEvent
	Src   RequestStatus
	Dst   RequestStatus
}

// Transitions defines all valid state changes of an adoption request.
// Approved and rejected are terminal, so only pending appears as a source.
var Transitions = []Transition{
	{Event: EventApprove, Src: RequestPending, Dst: RequestApproved},
	{Event: EventReject, Src: RequestPending, Dst: RequestRejected},
	{Event: EventSupersede, Src: RequestPending, Dst: RequestRejected},
}

// Outcome is the owner's decision on a request.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// Event maps the outcome to the request event it triggers.
func (o Outcome) Event() (RequestEvent, bool) {
	switch o {
	case OutcomeApproved:
		return EventApprove, true
	case OutcomeRejected:
		return EventReject, true
	default:
		return "", false
	}
}

// AdopterDetails holds the contact data an adopter leaves with a request.
type AdopterDetails struct {
	Name   string `validate:"required,min=2,max=100"`
	Email  string `validate:"required,email"`
	Phone  string `validate:"omitempty,min=7,max=20"`
	Reason string `validate:"required,max=2000"`
}

// AdoptionRequest is an adopter's application for a single pet.
type AdoptionRequest struct {
	ID        string
	PetID     string
	AdopterID string
	Adopter   AdopterDetails
	Status    RequestStatus
	CreatedAt time.Time
	DecidedAt time.Time
	DecidedBy string
}

// NewAdoptionRequest creates a request in the initial "pending" state.
func NewAdoptionRequest(id, petID, adopterID string, details AdopterDetails, now time.Time) AdoptionRequest {
	return AdoptionRequest{
		ID:        id,
		PetID:     petID,
		AdopterID: adopterID,
		Adopter:   details,
		Status:    RequestPending,
		CreatedAt: now,
	}
}

// Decided returns a copy of the request moved to status by decider at the given time.
func (r AdoptionRequest) Decided(status RequestStatus, decider string, at time.Time) AdoptionRequest {
	r.Status = status
	r.DecidedBy = decider
	r.DecidedAt = at
	return r
}
