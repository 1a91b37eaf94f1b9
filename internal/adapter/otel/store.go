package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

const instrumentationName = "github.com/neomorfeo/adoptiq/internal/adapter/otel"

// Commit outcomes reported on the commits counter.
const (
	outcomeOK       = "ok"
	outcomeConflict = "conflict"
	outcomeError    = "error"
)

// TracingRecordStore wraps a domain.RecordStore with OpenTelemetry tracing
// and counts commits by outcome, so lost compare-and-swap races are visible.
type TracingRecordStore struct {
	next    domain.RecordStore
	tracer  trace.Tracer
	commits metric.Int64Counter
}

// Compile-time check: TracingRecordStore implements domain.RecordStore.
var _ domain.RecordStore = (*TracingRecordStore)(nil)

// NewTracingRecordStore creates a tracing decorator around the given store.
func NewTracingRecordStore(next domain.RecordStore) (*TracingRecordStore, error) {
	commits, err := otel.Meter(instrumentationName).Int64Counter("adoptiq.store.commits",
		metric.WithDescription("Record store commits by outcome"),
		metric.WithUnit("{commit}"),
	)
	if err != nil {
		return nil, err
	}

	return &TracingRecordStore{
		next:    next,
		tracer:  otel.Tracer(instrumentationName),
		commits: commits,
	}, nil
}

func (s *TracingRecordStore) GetPet(ctx context.Context, id string) (domain.Versioned[domain.Pet], error) {
	ctx, span := s.tracer.Start(ctx, "RecordStore.GetPet",
		trace.WithAttributes(attribute.String("pet.id", id)),
	)
	defer span.End()

	pet, err := s.next.GetPet(ctx, id)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int64("record.version", int64(pet.Version)))
	}
	return pet, err
}

func (s *TracingRecordStore) GetRequest(ctx context.Context, id string) (domain.Versioned[domain.AdoptionRequest], error) {
	ctx, span := s.tracer.Start(ctx, "RecordStore.GetRequest",
		trace.WithAttributes(attribute.String("request.id", id)),
	)
	defer span.End()

	req, err := s.next.GetRequest(ctx, id)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(
			attribute.String("request.status", string(req.Record.Status)),
			attribute.Int64("record.version", int64(req.Version)),
		)
	}
	return req, err
}

func (s *TracingRecordStore) QueryRequests(ctx context.Context, field domain.RequestField, value string) ([]domain.Versioned[domain.AdoptionRequest], error) {
	ctx, span := s.tracer.Start(ctx, "RecordStore.QueryRequests",
		trace.WithAttributes(
			attribute.String("query.field", string(field)),
			attribute.String("query.value", value),
		),
	)
	defer span.End()

	rows, err := s.next.QueryRequests(ctx, field, value)
	if err != nil {
		recordError(span, err)
	} else {
		span.SetAttributes(attribute.Int("result.count", len(rows)))
	}
	return rows, err
}

func (s *TracingRecordStore) RequestSetVersion(ctx context.Context, petID string) (domain.Version, error) {
	ctx, span := s.tracer.Start(ctx, "RecordStore.RequestSetVersion",
		trace.WithAttributes(attribute.String("pet.id", petID)),
	)
	defer span.End()

	v, err := s.next.RequestSetVersion(ctx, petID)
	if err != nil {
		recordError(span, err)
	}
	return v, err
}

func (s *TracingRecordStore) Commit(ctx context.Context, cs domain.ChangeSet) error {
	ctx, span := s.tracer.Start(ctx, "RecordStore.Commit",
		trace.WithAttributes(
			attribute.Int("changeset.checks", len(cs.Checks)),
			attribute.Int("changeset.pets", len(cs.Pets)),
			attribute.Int("changeset.requests", len(cs.Requests)),
		),
	)
	defer span.End()

	err := s.next.Commit(ctx, cs)

	outcome := outcomeOK
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrVersionConflict):
		// A lost race is expected under contention; keep the span status unset.
		outcome = outcomeConflict
		span.AddEvent("version conflict")
	default:
		outcome = outcomeError
		recordError(span, err)
	}
	span.SetAttributes(attribute.String("commit.outcome", outcome))
	s.commits.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return err
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
