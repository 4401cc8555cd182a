package sync

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/njoerd114/agendasync/internal/remote"
)

const (
	metricRefreshes      = "agendasync.sync.refreshes"
	metricRemoteFailures = "agendasync.sync.remote_failures"
	metricRecordsDropped = "agendasync.sync.records_dropped"
	metricFallbackWrites = "agendasync.sync.fallback_writes"
)

// Telemetry is the production [Diagnostics]: it logs every absorbed failure
// through slog and counts it with OpenTelemetry. The counters are no-ops
// unless a meter provider was installed by telemetry.Setup.
type Telemetry struct {
	log *slog.Logger

	cntRefreshes      metric.Int64Counter
	cntRemoteFailures metric.Int64Counter
	cntRecordsDropped metric.Int64Counter
	cntFallbackWrites metric.Int64Counter
}

var _ Diagnostics = (*Telemetry)(nil)

// NewTelemetry creates a Telemetry that logs to logger.
func NewTelemetry(logger *slog.Logger) *Telemetry {
	meter := otel.Meter(otelScope)

	mustCounter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			logger.Error("creating OTel counter", "name", name, "error", err)
			return noop.Int64Counter{}
		}
		return c
	}

	return &Telemetry{
		log:               logger,
		cntRefreshes:      mustCounter(metricRefreshes, "Number of completed refreshes by outcome"),
		cntRemoteFailures: mustCounter(metricRemoteFailures, "Number of API calls answered from the local cache"),
		cntRecordsDropped: mustCounter(metricRecordsDropped, "Number of remote records that could not be mapped"),
		cntFallbackWrites: mustCounter(metricFallbackWrites, "Number of writes applied only to the local cache"),
	}
}

func (t *Telemetry) RemoteFailed(ctx context.Context, entity, op string, err error) {
	kind := remote.KindOf(err).String()
	t.log.WarnContext(ctx, "remote call failed, using local cache",
		"entity", entity, "op", op, "kind", kind, "error", err)
	t.cntRemoteFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("op", op),
		attribute.String("kind", kind),
	))
}

func (t *Telemetry) RecordDropped(ctx context.Context, entity string, err error) {
	t.log.WarnContext(ctx, "dropping unusable remote record", "entity", entity, "error", err)
	t.cntRecordsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

func (t *Telemetry) Refreshed(ctx context.Context, entity string, outcome RefreshOutcome, rows int) {
	t.log.DebugContext(ctx, "refresh complete", "entity", entity, "outcome", outcome, "rows", rows)
	t.cntRefreshes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("outcome", outcome.String()),
	))
}

func (t *Telemetry) FallbackWrite(ctx context.Context, entity, op string, id int64) {
	t.log.InfoContext(ctx, "write stored locally only", "entity", entity, "op", op, "id", id)
	t.cntFallbackWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("op", op),
	))
}

func (t *Telemetry) BackgroundFailed(ctx context.Context, entity string, err error) {
	t.log.ErrorContext(ctx, "background refresh failed", "entity", entity, "error", err)
}
