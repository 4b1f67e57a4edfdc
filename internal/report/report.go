// Package report describes the outcome of one stage cycle: a status for the
// cycle as a whole and an outcome for every manifest entry it touched.
package report

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Outcome is what happened to a single entry during a reconcile cycle.
type Outcome string

const (
	OutcomePublished        Outcome = "published"
	OutcomeFiltered         Outcome = "filtered"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomeWrongType        Outcome = "skipped-wrong-type"
	OutcomeFailedFetch      Outcome = "failed-fetch"
	OutcomeFailedExtraction Outcome = "failed-extraction"
	OutcomeFailedPublish    Outcome = "failed-publish"
)

// Outcomes lists every outcome in a stable order.
var Outcomes = []Outcome{
	OutcomePublished,
	OutcomeFiltered,
	OutcomeUnchanged,
	OutcomeWrongType,
	OutcomeFailedFetch,
	OutcomeFailedExtraction,
	OutcomeFailedPublish,
}

// Failed reports whether the outcome counts against the cycle.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFailedFetch, OutcomeFailedExtraction, OutcomeFailedPublish:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

const (
	StageSnapshot  = "snapshot"
	StageReconcile = "reconcile"
)

type EntryResult struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Outcome      Outcome       `json:"outcome"`
	Key          string        `json:"key,omitempty"`
	LocalWritten bool          `json:"localWritten"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Report is the record of one cycle of one stage.
type Report struct {
	ID         string        `json:"id"`
	Stage      string        `json:"stage"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt"`
	Manifest   string        `json:"manifest,omitempty"`
	Listed     int           `json:"listed,omitempty"`
	Skipped    int           `json:"skipped,omitempty"`
	Status     Status        `json:"status"`
	Error      string        `json:"error,omitempty"`
	Entries    []EntryResult `json:"entries,omitempty"`
}

func New(stage string) *Report {
	return &Report{
		ID:        uuid.NewString(),
		Stage:     stage,
		StartedAt: time.Now().UTC(),
	}
}

func (r *Report) Add(res EntryResult) {
	r.Entries = append(r.Entries, res)
}

// Counts tallies entries by outcome. Every outcome is present in the map.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, len(Outcomes))
	for _, o := range Outcomes {
		counts[o] = 0
	}
	for _, e := range r.Entries {
		counts[e.Outcome]++
	}
	return counts
}

// Finish stamps the end time and derives the status. A non-nil err marks
// the cycle failed; otherwise any failed entry makes it partial.
func (r *Report) Finish(err error) {
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
		return
	}
	r.Status = StatusSuccess
	for _, e := range r.Entries {
		if e.Outcome.Failed() {
			r.Status = StatusPartial
			return
		}
	}
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// LogValue renders the report summary for structured logs.
func (r *Report) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("cycle_id", r.ID),
		slog.String("stage", r.Stage),
		slog.String("status", string(r.Status)),
		slog.Duration("duration", r.Duration()),
	}
	if r.Manifest != "" {
		attrs = append(attrs, slog.String("manifest", r.Manifest))
	}
	if r.Stage == StageSnapshot {
		attrs = append(attrs, slog.Int("listed", r.Listed), slog.Int("skipped", r.Skipped))
	}
	if len(r.Entries) > 0 {
		counts := r.Counts()
		for _, o := range Outcomes {
			if counts[o] > 0 {
				attrs = append(attrs, slog.Int(string(o), counts[o]))
			}
		}
	}
	if r.Error != "" {
		attrs = append(attrs, slog.String("error", r.Error))
	}
	return slog.GroupValue(attrs...)
}
