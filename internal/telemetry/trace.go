package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan creates a new span for a service operation.
//
//	ctx, span := telemetry.StartSpan(ctx, TracerIdentity, "identity.Resolve",
//	    attribute.Int(telemetry.AttrCandidateCount, len(candidates)),
//	)
//	defer span.End()
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// AddEvent adds a named event to the span with optional attributes.
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Tracer names
const (
	TracerIdentity = "authresolve/services/identity"
	TracerHTTP     = "authresolve/http"
)

// Common attribute keys. Credential values are never recorded.
const (
	AttrSessionName    = "session.name"
	AttrCandidateCount = "session.candidate_count"
	AttrTier           = "identity.tier"
	AttrResolvedVia    = "identity.resolved_via"
	AttrUserID         = "identity.user_id"
	AttrGrantSource    = "grants.source"
	AttrRoleCount      = "grants.role_count"
	AttrPermCount      = "grants.permission_count"
	AttrSafetyNet      = "grants.safety_net"
	AttrTokenLocation  = "token.location"
)
