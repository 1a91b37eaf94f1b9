package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/adoptiq/internal/domain"
)

// TracingSink wraps a domain.NotificationSink with OpenTelemetry tracing.
type TracingSink struct {
	next   domain.NotificationSink
	tracer trace.Tracer
}

// Compile-time check: TracingSink implements domain.NotificationSink.
var _ domain.NotificationSink = (*TracingSink)(nil)

// NewTracingSink creates a tracing decorator around the given sink.
func NewTracingSink(next domain.NotificationSink) *TracingSink {
	return &TracingSink{
		next:   next,
		tracer: otel.Tracer(instrumentationName),
	}
}

func (s *TracingSink) OnRequestCreated(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	ctx, span := s.start(ctx, domain.NotifyRequestCreated, req)
	defer span.End()
	return s.done(span, s.next.OnRequestCreated(ctx, req, pet))
}

func (s *TracingSink) OnRequestApproved(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	ctx, span := s.start(ctx, domain.NotifyRequestApproved, req)
	defer span.End()
	return s.done(span, s.next.OnRequestApproved(ctx, req, pet))
}

func (s *TracingSink) OnRequestRejected(ctx context.Context, req domain.AdoptionRequest, pet domain.Pet) error {
	ctx, span := s.start(ctx, domain.NotifyRequestRejected, req)
	defer span.End()
	return s.done(span, s.next.OnRequestRejected(ctx, req, pet))
}

func (s *TracingSink) start(ctx context.Context, kind domain.NotificationKind, req domain.AdoptionRequest) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "NotificationSink.Notify",
		trace.WithAttributes(
			attribute.String("notification.kind", string(kind)),
			attribute.String("request.id", req.ID),
			attribute.String("pet.id", req.PetID),
		),
	)
}

func (s *TracingSink) done(span trace.Span, err error) error {
	if err != nil {
		recordError(span, err)
	}
	return err
}
