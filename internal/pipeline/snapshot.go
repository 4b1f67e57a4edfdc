package pipeline

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/tracing"
)

// Lister enumerates the remote drive.
type Lister interface {
	ListItems(ctx context.Context) ([]map[string]any, error)
}

// Snapshotter runs the snapshot stage.
type Snapshotter struct {
	lister   Lister
	writer   *manifest.Writer
	filename string
	notifier notify.Notifier
	observer Observer
}

type SnapshotOption func(*Snapshotter)

func WithSnapshotNotifier(n notify.Notifier) SnapshotOption {
	return func(s *Snapshotter) { s.notifier = n }
}

func WithSnapshotObserver(o Observer) SnapshotOption {
	return func(s *Snapshotter) { s.observer = o }
}

func NewSnapshotter(lister Lister, writer *manifest.Writer, filename string, opts ...SnapshotOption) *Snapshotter {
	s := &Snapshotter{
		lister:   lister,
		writer:   writer,
		filename: filename,
		notifier: notify.Nop{},
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunCycle lists the drive and writes a fresh manifest. A listing failure
// or a local write failure aborts the cycle and leaves the previous
// manifest untouched. A failed upload does not.
func (s *Snapshotter) RunCycle(ctx context.Context) (rep *report.Report, err error) {
	rep = report.New(report.StageSnapshot)
	ctx, span, log := beginCycle(ctx, rep)
	defer func() {
		endCycle(ctx, rep, span, log, err)
		s.observer.ObserveReport(rep)
	}()

	listCtx, listSpan := tracing.StartChildSpan(ctx, "list")
	records, err := s.lister.ListItems(listCtx)
	listSpan.End(err)
	if err != nil {
		return rep, apperrors.Stage(report.StageSnapshot, err)
	}
	rep.Listed = len(records)

	entries, skipped := manifest.Build(records)
	rep.Skipped = skipped
	if skipped > 0 {
		log.Warn("records without id skipped", "skipped", skipped)
	}

	writeCtx, writeSpan := tracing.StartChildSpan(ctx, "write")
	res, err := s.writer.Write(writeCtx, entries, s.filename)
	writeSpan.SetAttr("entries", len(entries))
	writeSpan.End(err)
	if err != nil {
		return rep, apperrors.Stage(report.StageSnapshot, err)
	}
	rep.Manifest = res.Path
	s.observer.ObserveManifest(len(entries))
	s.observer.ObserveUpload("manifest", res.UploadErr)

	if err := s.notifier.ManifestWritten(ctx, notify.ManifestWritten{
		CycleID:   rep.ID,
		Path:      res.Path,
		Key:       res.Key,
		Entries:   len(entries),
		Uploaded:  res.UploadErr == nil,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		log.Warn("manifest notification failed", "error", err)
	}
	return rep, nil
}
