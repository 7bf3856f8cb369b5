// Package metrics holds the OpenTelemetry instruments recorded by the cogs.
// Without an SDK meter provider installed the global meter is a no-op.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "modcogs"

// Metrics holds all modcogs metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	ConfirmationsStarted  metric.Int64Counter
	ConfirmationsResolved metric.Int64Counter
	ResponseTime          metric.Float64Histogram
	PingRequests          metric.Int64Counter
	PingLatency           metric.Float64Histogram
	HiringWrites          metric.Int64Counter
}

// New creates all metric instruments.
func New() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ConfirmationsStarted, err = meter.Int64Counter("modcogs.confirmations.started",
		metric.WithDescription("Number of confirmation prompts published"))
	if err != nil {
		return nil, err
	}

	m.ConfirmationsResolved, err = meter.Int64Counter("modcogs.confirmations.resolved",
		metric.WithDescription("Number of confirmation prompts resolved, by outcome"))
	if err != nil {
		return nil, err
	}

	m.ResponseTime, err = meter.Float64Histogram("modcogs.ticket.first_response_seconds",
		metric.WithDescription("Time from ticket creation to first staff reply"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.PingRequests, err = meter.Int64Counter("modcogs.uptime.requests",
		metric.WithDescription("Uptime ping requests, by result"))
	if err != nil {
		return nil, err
	}

	m.PingLatency, err = meter.Float64Histogram("modcogs.uptime.latency_seconds",
		metric.WithDescription("Uptime ping round-trip time"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	m.HiringWrites, err = meter.Int64Counter("modcogs.hiring.writes",
		metric.WithDescription("Hiring request writes to the remote store, by operation"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ConfirmationStarted counts a published confirmation.
func (m *Metrics) ConfirmationStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.ConfirmationsStarted.Add(ctx, 1)
}

// ConfirmationResolved counts a confirmation reaching the given outcome.
func (m *Metrics) ConfirmationResolved(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.ConfirmationsResolved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// FirstResponse records a ticket's first-response delay.
func (m *Metrics) FirstResponse(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.ResponseTime.Record(ctx, d.Seconds())
}

// Ping records one uptime probe.
func (m *Metrics) Ping(ctx context.Context, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.PingRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	m.PingLatency.Record(ctx, d.Seconds())
}

// HiringWrite counts one write against the hiring table.
func (m *Metrics) HiringWrite(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.HiringWrites.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}
