// Package pipeline runs the two drivesync stages. The snapshot stage turns
// a remote listing into a manifest on disk; the reconcile stage reads the
// newest manifest and publishes a text record for every accepted document.
// The stages share nothing but the manifest directory.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/tracing"
)

// Observer receives cycle measurements. *metrics.Metrics implements it.
type Observer interface {
	ObserveReport(r *report.Report)
	ObserveUpload(artifact string, err error)
	ObserveManifest(entries int)
}

type nopObserver struct{}

func (nopObserver) ObserveReport(*report.Report) {}
func (nopObserver) ObserveUpload(string, error) {}
func (nopObserver) ObserveManifest(int) {}

// Cycle is one stage's unit of work.
type Cycle interface {
	RunCycle(ctx context.Context) (*report.Report, error)
}

// beginCycle tags ctx with the report's id and opens the root span.
func beginCycle(ctx context.Context, rep *report.Report) (context.Context, *tracing.Span, *slog.Logger) {
	ctx = logger.WithCycleID(ctx, rep.ID)
	ctx, span := tracing.StartSpan(ctx, rep.Stage, rep.ID)
	log := logger.FromContext(ctx).With("component", rep.Stage)
	log.Info("cycle started")
	return ctx, span, log
}

// endCycle closes the report and span and logs both.
func endCycle(ctx context.Context, rep *report.Report, span *tracing.Span, log *slog.Logger, err error) {
	rep.Finish(err)
	span.SetAttr("status", string(rep.Status))
	span.End(err)
	span.Log(ctx, log)
	switch rep.Status {
	case report.StatusFailed:
		log.Error("cycle failed", "report", rep)
	case report.StatusPartial:
		log.Warn("cycle finished with failures", "report", rep)
	default:
		log.Info("cycle finished", "report", rep)
	}
}
