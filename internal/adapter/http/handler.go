package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/neomorfeo/adoptiq/internal/app"
	"github.com/neomorfeo/adoptiq/internal/domain"
)

// CallerHeader identifies the user on whose behalf a request is made.
// Authentication happens upstream; this service trusts the header.
const CallerHeader = "X-Caller-ID"

const timeLayout = time.RFC3339Nano

// PetResponse is the API representation of a pet.
type PetResponse struct {
	ID        string `json:"id" doc:"Unique identifier"`
	Name      string `json:"name" doc:"Display name"`
	OwnerID   string `json:"owner_id" doc:"User who listed the pet"`
	Status    string `json:"status" doc:"available or adopted"`
	AdoptedBy string `json:"adopted_by,omitempty" doc:"Adopter of an adopted pet"`
	AdoptedAt string `json:"adopted_at,omitempty" doc:"Adoption timestamp (RFC 3339)"`
	CreatedAt string `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
}

func toPetResponse(p domain.Pet) PetResponse {
	return PetResponse{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		Status:    string(p.Status),
		AdoptedBy: p.AdoptedBy,
		AdoptedAt: formatTime(p.AdoptedAt),
		CreatedAt: formatTime(p.CreatedAt),
	}
}

// RequestResponse is the API representation of an adoption request.
type RequestResponse struct {
	ID           string `json:"id" doc:"Unique identifier"`
	PetID        string `json:"pet_id" doc:"Requested pet"`
	AdopterID    string `json:"adopter_id" doc:"Requesting user"`
	AdopterName  string `json:"adopter_name"`
	AdopterEmail string `json:"adopter_email"`
	AdopterPhone string `json:"adopter_phone,omitempty"`
	Reason       string `json:"reason"`
	Status       string `json:"status" doc:"pending, approved or rejected"`
	CreatedAt    string `json:"created_at" doc:"Creation timestamp (RFC 3339)"`
	DecidedAt    string `json:"decided_at,omitempty" doc:"Decision timestamp (RFC 3339)"`
	DecidedBy    string `json:"decided_by,omitempty" doc:"User who decided the request"`
}

func toRequestResponse(r domain.AdoptionRequest) RequestResponse {
	return RequestResponse{
		ID:           r.ID,
		PetID:        r.PetID,
		AdopterID:    r.AdopterID,
		AdopterName:  r.Adopter.Name,
		AdopterEmail: r.Adopter.Email,
		AdopterPhone: r.Adopter.Phone,
		Reason:       r.Adopter.Reason,
		Status:       string(r.Status),
		CreatedAt:    formatTime(r.CreatedAt),
		DecidedAt:    formatTime(r.DecidedAt),
		DecidedBy:    r.DecidedBy,
	}
}

func toRequestResponses(reqs []domain.AdoptionRequest) []RequestResponse {
	out := make([]RequestResponse, len(reqs))
	for i, r := range reqs {
		out[i] = toRequestResponse(r)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// --- Pets ---

type CreatePetInput struct {
	CallerID string `header:"X-Caller-ID" required:"true" doc:"Listing user, becomes the owner"`
	Body     struct {
		Name string `json:"name" minLength:"1" maxLength:"100" doc:"Display name"`
	}
}

type PetOutput struct {
	Body PetResponse
}

type GetPetInput struct {
	PetID string `path:"petId" doc:"Pet ID"`
}

// --- Requests ---

type SubmitRequestInput struct {
	PetID    string `path:"petId" doc:"Pet ID"`
	CallerID string `header:"X-Caller-ID" required:"true" doc:"Adopter submitting the request"`
	Body     struct {
		Name   string `json:"name" doc:"Adopter full name"`
		Email  string `json:"email" doc:"Adopter email"`
		Phone  string `json:"phone,omitempty" required:"false" doc:"Adopter phone"`
		Reason string `json:"reason" doc:"Why the adopter wants the pet"`
	}
}

type SubmitRequestOutput struct {
	Body struct {
		ID string `json:"id" doc:"New request ID"`
	}
}

type DecideInput struct {
	PetID     string `path:"petId" doc:"Pet ID"`
	RequestID string `path:"requestId" doc:"Request ID"`
	CallerID  string `header:"X-Caller-ID" required:"true" doc:"Deciding user, must own the pet"`
	Body      struct {
		Outcome string `json:"outcome" enum:"approved,rejected" doc:"Decision"`
	}
}

type ListForPetInput struct {
	PetID string `path:"petId" doc:"Pet ID"`
}

type ListForAdopterInput struct {
	AdopterID string `path:"adopterId" doc:"Adopter ID"`
}

type ListRequestsOutput struct {
	Body []RequestResponse
}

// Register adds the pet and adoption request routes to the Huma API.
func Register(api huma.API, engine *app.Engine, pets domain.PetCatalog, owners domain.OwnershipChecker) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-pet",
		Method:        http.MethodPost,
		Path:          "/api/v1/pets",
		Summary:       "List a pet for adoption",
		Tags:          []string{"Pets"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *CreatePetInput) (*PetOutput, error) {
		pet := domain.NewPet(uuid.NewString(), input.Body.Name, input.CallerID)
		if err := pets.Put(ctx, pet, 0); err != nil {
			return nil, toHumaError(fmt.Errorf("creating pet: %w", err))
		}
		return &PetOutput{Body: toPetResponse(pet)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-pet",
		Method:      http.MethodGet,
		Path:        "/api/v1/pets/{petId}",
		Summary:     "Get a pet by ID",
		Tags:        []string{"Pets"},
	}, func(ctx context.Context, input *GetPetInput) (*PetOutput, error) {
		pet, err := pets.Get(ctx, input.PetID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &PetOutput{Body: toPetResponse(pet.Record)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-adoption-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/pets/{petId}/requests",
		Summary:       "Request to adopt a pet",
		Tags:          []string{"Adoption requests"},
		DefaultStatus: http.StatusCreated,
	}, func(ctx context.Context, input *SubmitRequestInput) (*SubmitRequestOutput, error) {
		id, err := engine.SubmitRequest(ctx, input.PetID, input.CallerID, domain.AdopterDetails{
			Name:   input.Body.Name,
			Email:  input.Body.Email,
			Phone:  input.Body.Phone,
			Reason: input.Body.Reason,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &SubmitRequestOutput{}
		out.Body.ID = id
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "decide-adoption-request",
		Method:        http.MethodPost,
		Path:          "/api/v1/pets/{petId}/requests/{requestId}/decision",
		Summary:       "Approve or reject an adoption request",
		Tags:          []string{"Adoption requests"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DecideInput) (*struct{}, error) {
		owner, err := owners.IsOwner(ctx, input.PetID, input.CallerID)
		if err != nil {
			return nil, toHumaError(err)
		}
		err = engine.Decide(ctx, app.Decision{
			PetID:      input.PetID,
			RequestID:  input.RequestID,
			Outcome:    domain.Outcome(input.Body.Outcome),
			DeciderID:  input.CallerID,
			Authorized: owner,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-pet-requests",
		Method:      http.MethodGet,
		Path:        "/api/v1/pets/{petId}/requests",
		Summary:     "List adoption requests for a pet",
		Tags:        []string{"Adoption requests"},
	}, func(ctx context.Context, input *ListForPetInput) (*ListRequestsOutput, error) {
		reqs, err := engine.ListRequestsForPet(ctx, input.PetID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListRequestsOutput{Body: toRequestResponses(reqs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-adopter-requests",
		Method:      http.MethodGet,
		Path:        "/api/v1/adopters/{adopterId}/requests",
		Summary:     "List adoption requests made by an adopter",
		Tags:        []string{"Adoption requests"},
	}, func(ctx context.Context, input *ListForAdopterInput) (*ListRequestsOutput, error) {
		reqs, err := engine.ListRequestsForAdopter(ctx, input.AdopterID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListRequestsOutput{Body: toRequestResponses(reqs)}, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error400BadRequest(valErr.Error())
	}

	var authErr *domain.UnauthorizedError
	if errors.As(err, &authErr) {
		return huma.Error403Forbidden(authErr.Error())
	}

	var nfErr *domain.NotFoundError
	if errors.As(err, &nfErr) {
		return huma.Error404NotFound(nfErr.Error())
	}

	var dupErr *domain.DuplicateRequestError
	if errors.As(err, &dupErr) {
		return huma.Error409Conflict(dupErr.Error())
	}

	var unavailable *domain.PetUnavailableError
	if errors.As(err, &unavailable) {
		return huma.Error409Conflict(unavailable.Error())
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}
	if errors.Is(err, domain.ErrVersionConflict) {
		return huma.Error409Conflict("record was modified concurrently")
	}

	var trErr *domain.InvalidTransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	if domain.IsTransient(err) {
		return huma.Error503ServiceUnavailable("storage temporarily unavailable, retry later")
	}

	return huma.Error500InternalServerError("internal server error")
}
