package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/document"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/tracing"
)

// ManifestSource yields the manifest a reconcile cycle works from.
type ManifestSource interface {
	Latest(ctx context.Context) (*manifest.Manifest, error)
}

// Reconciler runs the reconcile stage.
type Reconciler struct {
	source    ManifestSource
	fetcher   *document.Fetcher
	extractor extract.Extractor
	publisher *publish.Publisher
	ledger    ledger.Ledger
	notifier  notify.Notifier
	observer  Observer
}

type ReconcileOption func(*Reconciler)

func WithLedger(l ledger.Ledger) ReconcileOption {
	return func(r *Reconciler) { r.ledger = l }
}

func WithReconcileNotifier(n notify.Notifier) ReconcileOption {
	return func(r *Reconciler) { r.notifier = n }
}

func WithReconcileObserver(o Observer) ReconcileOption {
	return func(r *Reconciler) { r.observer = o }
}

func NewReconciler(source ManifestSource, fetcher *document.Fetcher, extractor extract.Extractor, publisher *publish.Publisher, opts ...ReconcileOption) *Reconciler {
	r := &Reconciler{
		source:    source,
		fetcher:   fetcher,
		extractor: extractor,
		publisher: publisher,
		ledger:    ledger.Nop{},
		notifier:  notify.Nop{},
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCycle processes every entry of the newest manifest in order, one at a
// time. A missing or unreadable manifest aborts the cycle before any fetch.
// Entry failures are recorded on the report and never stop the loop; only
// cancellation of ctx does.
func (r *Reconciler) RunCycle(ctx context.Context) (rep *report.Report, err error) {
	rep = report.New(report.StageReconcile)
	ctx, span, log := beginCycle(ctx, rep)
	defer func() {
		endCycle(ctx, rep, span, log, err)
		r.observer.ObserveReport(rep)
	}()

	m, err := r.source.Latest(ctx)
	if err != nil {
		return rep, apperrors.Stage(report.StageReconcile, err)
	}
	rep.Manifest = m.Path
	log.Info("manifest selected", "manifest", m.Name, "entries", len(m.Entries))

	var published []notify.RecordPublished
	for _, entry := range m.Entries {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res := r.reconcileEntry(ctx, log, entry)
		rep.Add(res)
		if res.Outcome == report.OutcomePublished {
			published = append(published, notify.RecordPublished{
				CycleID:   rep.ID,
				ItemID:    entry.ID,
				Name:      entry.NameOrEmpty(),
				Key:       res.Key,
				Version:   entry.Version(),
				Timestamp: time.Now().UTC(),
			})
		}
	}

	if err := r.notifier.RecordsPublished(ctx, published); err != nil {
		log.Warn("record notifications failed", "count", len(published), "error", err)
	}
	return rep, nil
}

func (r *Reconciler) reconcileEntry(ctx context.Context, log *slog.Logger, entry manifest.Entry) (res report.EntryResult) {
	start := time.Now()
	res = report.EntryResult{ID: entry.ID, Name: entry.NameOrEmpty()}
	ctx, span := tracing.StartChildSpan(ctx, "entry")
	span.SetAttr("id", entry.ID)
	span.SetAttr("name", res.Name)
	defer func() {
		res.Duration = time.Since(start)
		span.SetAttr("outcome", string(res.Outcome))
		var spanErr error
		if res.Error != "" {
			spanErr = errors.New(res.Error)
		}
		span.End(spanErr)
	}()

	fail := func(outcome report.Outcome, err error) report.EntryResult {
		res.Outcome = outcome
		res.Error = err.Error()
		log.Warn("entry not published",
			"id", entry.ID,
			"name", res.Name,
			"outcome", string(outcome),
			"error", err,
		)
		return res
	}

	if !r.fetcher.Accepts(entry) {
		res.Outcome = report.OutcomeFiltered
		return res
	}

	seen, err := r.ledger.Seen(ctx, entry.ID, entry.Version())
	if err != nil {
		log.Warn("ledger lookup failed, processing entry", "id", entry.ID, "error", err)
	}
	if seen {
		res.Outcome = report.OutcomeUnchanged
		return res
	}

	fetched := r.fetcher.Fetch(ctx, entry)
	switch fetched.Status {
	case document.StatusFiltered:
		res.Outcome = report.OutcomeFiltered
		return res
	case document.StatusWrongType:
		res.Outcome = report.OutcomeWrongType
		res.Error = fetched.Err.Error()
		return res
	case document.StatusFailed:
		return fail(report.OutcomeFailedFetch, fetched.Err)
	}

	text, err := r.extractor.Extract(ctx, fetched.Path)
	if err != nil {
		return fail(report.OutcomeFailedExtraction, err)
	}

	pub, err := r.publisher.Publish(ctx, entry.NameOrEmpty(), text)
	res.Key = pub.Key
	res.LocalWritten = pub.LocalWritten
	if pub.LocalWritten {
		r.observer.ObserveUpload("record", err)
	}
	if err != nil {
		return fail(report.OutcomeFailedPublish, err)
	}

	if err := r.ledger.Mark(ctx, entry.ID, entry.Version()); err != nil {
		log.Warn("ledger update failed", "id", entry.ID, "error", err)
	}
	res.Outcome = report.OutcomePublished
	log.Info("entry published", "id", entry.ID, "name", res.Name, "key", pub.Key)
	return res
}
