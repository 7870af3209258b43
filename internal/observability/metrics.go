package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OTel metric instruments for parity and golden runs.
type Metrics struct {
	Cases         metric.Int64Counter
	CaseDuration  metric.Float64Histogram
	ValidatorRuns metric.Int64Counter
}

// NewMetrics creates the instruments on meter, or on the global meter
// provider when meter is nil.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter("feedparity")
	}

	cases, err := meter.Int64Counter("feedparity.cases",
		metric.WithDescription("Number of cases evaluated, by run kind and outcome"),
	)
	if err != nil {
		return nil, err
	}

	caseDuration, err := meter.Float64Histogram("feedparity.case.duration_seconds",
		metric.WithDescription("Wall-clock time spent on one case"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	validatorRuns, err := meter.Int64Counter("feedparity.validator.runs",
		metric.WithDescription("Number of validator invocations, by implementation and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Cases:         cases,
		CaseDuration:  caseDuration,
		ValidatorRuns: validatorRuns,
	}, nil
}

// RecordCase records one finished case. kind is "golden" or "parity".
func (m *Metrics) RecordCase(ctx context.Context, kind string, passed bool, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("outcome", outcome(passed)),
	)
	m.Cases.Add(ctx, 1, attrs)
	m.CaseDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordValidatorRun records one validator invocation. status is "success",
// "failed" or "timeout".
func (m *Metrics) RecordValidatorRun(ctx context.Context, implementation, status string) {
	if m == nil {
		return
	}
	m.ValidatorRuns.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("implementation", implementation),
			attribute.String("status", status),
		),
	)
}

func outcome(passed bool) string {
	if passed {
		return "match"
	}
	return "mismatch"
}
