package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// Decision is a pet owner's verdict on one adoption request.
// Authorized must be established by the caller, typically through a
// domain.OwnershipChecker, before Decide is invoked.
type Decision struct {
	PetID      string
	RequestID  string
	Outcome    domain.Outcome
	DeciderID  string
	Authorized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetryPolicy overrides the approve retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(e *Engine) { e.retry = p }
}

// WithClock overrides the time source used for request timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger used for notification failures and decisions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithIDGenerator overrides request id generation.
func WithIDGenerator(gen func() (string, error)) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine runs the adoption request workflow: submissions, decisions and
// listings. Every mutation is one compare-and-swap unit of work against the
// record store, so concurrent callers never observe a half-applied decision.
type Engine struct {
	pets      domain.PetCatalog
	requests  domain.RequestStore
	tx        domain.Committer
	sink      domain.NotificationSink
	validator domain.TransitionValidator

	retry  RetryPolicy
	now    func() time.Time
	newID  func() (string, error)
	logger *slog.Logger
}

// NewEngine creates an engine with the given adapters.
func NewEngine(
	pets domain.PetCatalog,
	requests domain.RequestStore,
	tx domain.Committer,
	sink domain.NotificationSink,
	validator domain.TransitionValidator,
	opts ...Option,
) *Engine {
	e := &Engine{
		pets:      pets,
		requests:  requests,
		tx:        tx,
		sink:      sink,
		validator: validator,
		retry:     DefaultRetryPolicy(),
		now:       func() time.Time { return time.Now().UTC() },
		newID:     generateID,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SubmitRequest records a pending request from adopterID for petID and
// returns its id. The pet owner is notified once the request is stored.
func (e *Engine) SubmitRequest(ctx context.Context, petID, adopterID string, details domain.AdopterDetails) (string, error) {
	if err := requireID("pet_id", petID); err != nil {
		return "", err
	}
	if err := requireID("adopter_id", adopterID); err != nil {
		return "", err
	}
	details = normalizeDetails(details)
	if err := validateDetails(details); err != nil {
		return "", err
	}

	pet, err := e.pets.Get(ctx, petID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", &domain.PetUnavailableError{PetID: petID, Err: err}
		}
		return "", fmt.Errorf("loading pet %q: %w", petID, err)
	}
	if !pet.Record.Available() {
		return "", &domain.PetUnavailableError{PetID: petID, Status: pet.Record.Status}
	}

	set, err := e.requests.ForPet(ctx, petID)
	if err != nil {
		return "", withStorageContext(err, petID, "")
	}
	if _, dup := set.PendingFor(adopterID); dup {
		return "", &domain.DuplicateRequestError{PetID: petID, AdopterID: adopterID}
	}

	id, err := e.newID()
	if err != nil {
		return "", fmt.Errorf("generating request id: %w", err)
	}
	req := domain.NewAdoptionRequest(id, petID, adopterID, details, e.now())

	// Guarding the request set makes a concurrent duplicate submit lose.
	var cs domain.ChangeSet
	cs.Expect(domain.KindPet, petID, pet.Version)
	cs.Expect(domain.KindRequestSet, petID, set.Version)
	cs.PutRequest(req, 0)

	if err := e.tx.Commit(ctx, cs); err != nil {
		return "", withStorageContext(commitError(err, petID, id, 1), petID, id)
	}

	e.logger.InfoContext(ctx, "adoption request submitted",
		"request_id", id, "pet_id", petID, "adopter_id", adopterID)
	e.notify(ctx, domain.NotifyRequestCreated, req, pet.Record)

	return id, nil
}

// Decide applies an owner's decision to a pending request. Approving adopts
// the pet and supersedes every other pending request for it in one unit of
// work, retrying on lost races. Rejecting touches only the target request.
func (e *Engine) Decide(ctx context.Context, d Decision) error {
	event, ok := d.Outcome.Event()
	if !ok {
		return &domain.ValidationError{Field: "outcome", Reason: fmt.Sprintf("unknown outcome %q", d.Outcome)}
	}
	if err := requireID("pet_id", d.PetID); err != nil {
		return err
	}
	if err := requireID("request_id", d.RequestID); err != nil {
		return err
	}
	if !d.Authorized {
		return &domain.UnauthorizedError{PetID: d.PetID, CallerID: d.DeciderID}
	}

	var err error
	if event == domain.EventApprove {
		err = e.approve(ctx, d)
	} else {
		err = e.reject(ctx, d)
	}
	return withStorageContext(err, d.PetID, d.RequestID)
}

// ListRequestsForPet returns the pet's requests ordered by creation time.
func (e *Engine) ListRequestsForPet(ctx context.Context, petID string) ([]domain.AdoptionRequest, error) {
	if err := requireID("pet_id", petID); err != nil {
		return nil, err
	}
	return e.list(ctx, domain.FieldPetID, petID)
}

// ListRequestsForAdopter returns the adopter's requests ordered by creation time.
func (e *Engine) ListRequestsForAdopter(ctx context.Context, adopterID string) ([]domain.AdoptionRequest, error) {
	if err := requireID("adopter_id", adopterID); err != nil {
		return nil, err
	}
	return e.list(ctx, domain.FieldAdopterID, adopterID)
}

func (e *Engine) list(ctx context.Context, field domain.RequestField, value string) ([]domain.AdoptionRequest, error) {
	rows, err := e.requests.QueryByField(ctx, field, value)
	if err != nil {
		return nil, fmt.Errorf("listing requests by %s: %w", field, err)
	}
	out := make([]domain.AdoptionRequest, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Record)
	}
	return out, nil
}

func (e *Engine) reject(ctx context.Context, d Decision) error {
	req, err := e.loadRequest(ctx, d.PetID, d.RequestID)
	if err != nil {
		return err
	}
	next, err := e.transition(ctx, req.Record, domain.EventReject)
	if err != nil {
		return err
	}

	rejected := req.Record.Decided(next, d.DeciderID, e.now())
	var cs domain.ChangeSet
	cs.PutRequest(rejected, req.Version)

	if err := e.tx.Commit(ctx, cs); err != nil {
		return commitError(err, d.PetID, d.RequestID, 1)
	}

	e.logger.InfoContext(ctx, "adoption request rejected",
		"request_id", d.RequestID, "pet_id", d.PetID, "decided_by", d.DeciderID)

	pet := domain.Pet{ID: d.PetID}
	if p, err := e.pets.Get(ctx, d.PetID); err == nil {
		pet = p.Record
	}
	e.notify(ctx, domain.NotifyRequestRejected, rejected, pet)

	return nil
}

// approval is what a successful approve commit wrote.
type approval struct {
	pet        domain.Pet
	winner     domain.AdoptionRequest
	superseded []domain.AdoptionRequest
}

func (e *Engine) approve(ctx context.Context, d Decision) error {
	attempts := 0
	op := func() (approval, error) {
		attempts++
		a, err := e.approveOnce(ctx, d)
		if err != nil && !retryable(err) {
			return approval{}, backoff.Permanent(err)
		}
		if err != nil {
			e.logger.DebugContext(ctx, "approve attempt lost a race",
				"request_id", d.RequestID, "pet_id", d.PetID, "attempt", attempts, "error", err)
		}
		return a, err
	}

	a, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(e.retry.backOff()),
		backoff.WithMaxTries(e.retry.attempts()),
	)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Unwrap()
		}
		return commitError(err, d.PetID, d.RequestID, attempts)
	}

	e.logger.InfoContext(ctx, "adoption request approved",
		"request_id", d.RequestID, "pet_id", d.PetID, "decided_by", d.DeciderID,
		"superseded", len(a.superseded), "attempts", attempts)

	e.notify(ctx, domain.NotifyRequestApproved, a.winner, a.pet)
	for _, r := range a.superseded {
		e.notify(ctx, domain.NotifyRequestRejected, r, a.pet)
	}

	return nil
}

// approveOnce reads fresh state and commits the whole approval, or nothing.
func (e *Engine) approveOnce(ctx context.Context, d Decision) (approval, error) {
	req, err := e.loadRequest(ctx, d.PetID, d.RequestID)
	if err != nil {
		return approval{}, err
	}
	next, err := e.transition(ctx, req.Record, domain.EventApprove)
	if err != nil {
		return approval{}, err
	}

	pet, err := e.pets.Get(ctx, d.PetID)
	if err != nil {
		return approval{}, err
	}
	now := e.now()
	adopted, err := pet.Record.Adopt(req.Record.AdopterID, now)
	if err != nil {
		return approval{}, err
	}

	set, err := e.requests.ForPet(ctx, d.PetID)
	if err != nil {
		return approval{}, err
	}

	winner := req.Record.Decided(next, d.DeciderID, now)

	var cs domain.ChangeSet
	cs.PutPet(adopted, pet.Version)
	cs.PutRequest(winner, req.Version)
	// A request inserted after the snapshot would escape supersession.
	cs.Expect(domain.KindRequestSet, d.PetID, set.Version)

	var superseded []domain.AdoptionRequest
	for _, sibling := range set.Pending(d.RequestID) {
		status, err := e.transition(ctx, sibling.Record, domain.EventSupersede)
		if err != nil {
			return approval{}, err
		}
		loser := sibling.Record.Decided(status, d.DeciderID, now)
		cs.PutRequest(loser, sibling.Version)
		superseded = append(superseded, loser)
	}

	if err := e.tx.Commit(ctx, cs); err != nil {
		return approval{}, err
	}

	return approval{pet: adopted, winner: winner, superseded: superseded}, nil
}

// loadRequest fetches a request and hides it when it belongs to another pet.
func (e *Engine) loadRequest(ctx context.Context, petID, requestID string) (domain.Versioned[domain.AdoptionRequest], error) {
	req, err := e.requests.Get(ctx, requestID)
	if err != nil {
		return domain.Versioned[domain.AdoptionRequest]{}, err
	}
	if req.Record.PetID != petID {
		return domain.Versioned[domain.AdoptionRequest]{}, &domain.NotFoundError{Kind: domain.KindRequest, ID: requestID}
	}
	return req, nil
}

func (e *Engine) transition(ctx context.Context, req domain.AdoptionRequest, event domain.RequestEvent) (domain.RequestStatus, error) {
	next, err := e.validator.Apply(ctx, req.Status, event)
	if err != nil {
		var te *domain.InvalidTransitionError
		if errors.As(err, &te) && te.RequestID == "" {
			te.RequestID = req.ID
		}
		return "", err
	}
	return next, nil
}

// notify delivers a post-commit notification. Failures are logged only.
func (e *Engine) notify(ctx context.Context, kind domain.NotificationKind, req domain.AdoptionRequest, pet domain.Pet) {
	if e.sink == nil {
		return
	}

	var err error
	switch kind {
	case domain.NotifyRequestCreated:
		err = e.sink.OnRequestCreated(ctx, req, pet)
	case domain.NotifyRequestApproved:
		err = e.sink.OnRequestApproved(ctx, req, pet)
	case domain.NotifyRequestRejected:
		err = e.sink.OnRequestRejected(ctx, req, pet)
	}

	if err != nil {
		e.logger.WarnContext(ctx, "notification delivery failed",
			"kind", kind, "request_id", req.ID, "pet_id", pet.ID, "error", err)
	}
}

// commitError turns a lost race into a ConflictError and leaves every other
// failure as is.
func commitError(err error, petID, requestID string, attempts int) error {
	if errors.Is(err, domain.ErrVersionConflict) {
		return &domain.ConflictError{PetID: petID, RequestID: requestID, Attempts: attempts, Err: err}
	}
	return err
}

// withStorageContext names the pet and request a backend failure hit.
// Domain errors pass through unchanged.
func withStorageContext(err error, petID, requestID string) error {
	var se *domain.StorageError
	if err == nil || !errors.As(err, &se) {
		return err
	}
	if requestID == "" {
		return fmt.Errorf("pet %q: %w", petID, err)
	}
	return fmt.Errorf("pet %q, request %q: %w", petID, requestID, err)
}
