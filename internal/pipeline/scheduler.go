package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
)

// Stage pairs a cycle with the interval between its runs.
type Stage struct {
	Name     string
	Cycle    Cycle
	Interval time.Duration
}

// Scheduler runs each registered stage on its own ticker. A stage never
// overlaps with itself: concurrent requests for the same stage share the
// in-flight cycle's result.
type Scheduler struct {
	stages   []Stage
	recorder report.Recorder
	group    singleflight.Group
	logger   *slog.Logger

	mu          sync.Mutex
	lastSuccess map[string]time.Time
}

func NewScheduler(recorder report.Recorder, stages ...Stage) *Scheduler {
	if recorder == nil {
		recorder = report.NopRecorder{}
	}
	return &Scheduler{
		stages:      stages,
		recorder:    recorder,
		logger:      logger.WithComponent("scheduler"),
		lastSuccess: make(map[string]time.Time),
	}
}

// Run starts one loop per stage and blocks until ctx is cancelled. Each
// loop runs its first cycle immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.stages) == 0 {
		return fmt.Errorf("no stages to schedule")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, st := range s.stages {
		g.Go(func() error {
			s.loop(ctx, st)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, st Stage) {
	s.logger.Info("stage loop started", "stage", st.Name, "interval", st.Interval)
	ticker := time.NewTicker(st.Interval)
	defer ticker.Stop()

	s.RunOnce(ctx, st.Name)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stage loop stopped", "stage", st.Name)
			return
		case <-ticker.C:
			s.RunOnce(ctx, st.Name)
		}
	}
}

// RunOnce runs one cycle of the named stage, or joins the cycle already in
// progress. Stage-fatal errors are reported, not returned; the returned
// error is only for an unknown stage.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (*report.Report, error) {
	var stage *Stage
	for i := range s.stages {
		if s.stages[i].Name == name {
			stage = &s.stages[i]
			break
		}
	}
	if stage == nil {
		return nil, fmt.Errorf("unknown stage %q", name)
	}

	v, _, shared := s.group.Do(name, func() (any, error) {
		rep, err := stage.Cycle.RunCycle(ctx)
		switch {
		case err == nil:
		case apperrors.IsStageFatal(err):
			s.logger.Error("stage aborted", "stage", name, "cycle_id", rep.ID, "error", err)
		default:
			s.logger.Warn("cycle interrupted", "stage", name, "cycle_id", rep.ID, "error", err)
		}
		if rep.Status != report.StatusFailed {
			s.mu.Lock()
			s.lastSuccess[name] = rep.FinishedAt
			s.mu.Unlock()
		}
		if err := s.recorder.Save(context.WithoutCancel(ctx), rep); err != nil {
			s.logger.Warn("saving cycle report failed", "stage", name, "cycle_id", rep.ID, "error", err)
		}
		return rep, nil
	})
	if shared {
		s.logger.Debug("joined in-flight cycle", "stage", name)
	}
	return v.(*report.Report), nil
}

// LastSuccess returns when the named stage last finished a cycle that was
// not failed, or the zero time.
func (s *Scheduler) LastSuccess(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess[name]
}
