package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ResolutionMetrics counts resolution outcomes. A nil *ResolutionMetrics is
// valid and records nothing.
type ResolutionMetrics struct {
	Resolutions      metric.Int64Counter // by resolved_via ("anonymous" when none)
	SafetyNetApplied metric.Int64Counter
	GrantSourceFails metric.Int64Counter // by source
}

// NewResolutionMetrics registers the instruments on the global meter provider.
func NewResolutionMetrics() (*ResolutionMetrics, error) {
	meter := otel.Meter("authresolve/identity")

	resolutions, err := meter.Int64Counter(
		"authresolve.resolution.count",
		metric.WithDescription("Identity resolutions by winning tier"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}

	safetyNet, err := meter.Int64Counter(
		"authresolve.safety_net.count",
		metric.WithDescription("Bootstrap-role safety net substitutions"),
		metric.WithUnit("{substitution}"),
	)
	if err != nil {
		return nil, err
	}

	grantFails, err := meter.Int64Counter(
		"authresolve.grant_source.error.count",
		metric.WithDescription("Grant source reads that failed and contributed nothing"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ResolutionMetrics{
		Resolutions:      resolutions,
		SafetyNetApplied: safetyNet,
		GrantSourceFails: grantFails,
	}, nil
}

// RecordResolution counts one resolution under its tier.
func (m *ResolutionMetrics) RecordResolution(ctx context.Context, via string) {
	if m == nil {
		return
	}
	if via == "" {
		via = "anonymous"
	}
	m.Resolutions.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResolvedVia, via)))
}

// RecordSafetyNet counts one safety net substitution.
func (m *ResolutionMetrics) RecordSafetyNet(ctx context.Context) {
	if m == nil {
		return
	}
	m.SafetyNetApplied.Add(ctx, 1)
}

// RecordGrantSourceError counts one failed grant source read.
func (m *ResolutionMetrics) RecordGrantSourceError(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.GrantSourceFails.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrGrantSource, source)))
}
