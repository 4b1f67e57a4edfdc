package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/document"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/extract"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/graph"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/ledger"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/manifest"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/notify"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/publish"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/report"
	"github.com/Adithya-Monish-Kumar-K/drivesync/internal/sink"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/drivesync/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; environment variables override it)")
	stageFlag := flag.String("stage", "both", "stages to run: snapshot, reconcile or both")
	once := flag.Bool("once", false, "run one cycle of each selected stage and exit")
	resetLedger := flag.Bool("reset-ledger", false, "forget previously published documents before starting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err == nil {
		err = selectStages(cfg, *stageFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	os.Exit(run(cfg, *once, *resetLedger))
}

// selectStages narrows the enabled stages to the one named by the -stage
// flag and re-validates.
func selectStages(cfg *config.Config, stage string) error {
	switch stage {
	case "both":
	case report.StageSnapshot:
		cfg.Reconcile.Enabled = false
		cfg.Snapshot.Enabled = true
	case report.StageReconcile:
		cfg.Snapshot.Enabled = false
		cfg.Reconcile.Enabled = true
	default:
		return fmt.Errorf("unknown -stage %q", stage)
	}
	return cfg.Validate()
}

func run(cfg *config.Config, once, resetLedger bool) int {
	slog.Info("starting drivesync",
		"snapshot", cfg.Snapshot.Enabled,
		"reconcile", cfg.Reconcile.Enabled,
		"sink", cfg.Sink.Kind,
		"once", once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()

	baseSink, err := newSink(ctx, cfg.Sink)
	if err != nil {
		slog.Error("failed to create sink", "error", err)
		return 1
	}
	breaker := sink.NewBreaker(baseSink, cfg.Sink.Breaker, func(s sink.State) {
		m.CircuitBreakerState.WithLabelValues("sink").Set(float64(s))
	})
	checker.Register("sink", health.Degraded(func() string {
		if breaker.State() == sink.StateOpen {
			return "circuit open, uploads are being skipped"
		}
		return ""
	}))

	client := graph.New(graph.NewHTTPClient(ctx, cfg.Remote), cfg.Remote)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Kafka.Enabled {
		notifier = notify.NewKafka(cfg.Kafka)
		slog.Info("kafka notifications enabled",
			"brokers", cfg.Kafka.Brokers,
			"manifest_topic", cfg.Kafka.Topics.ManifestWritten,
			"record_topic", cfg.Kafka.Topics.RecordPublished,
		)
	}
	defer notifier.Close()

	var recorder report.Recorder = report.NopRecorder{}
	if cfg.Postgres.Enabled {
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			return 1
		}
		defer pg.Close()
		store := report.NewStore(pg)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare report schema", "error", err)
			return 1
		}
		recorder = store
		checker.Register("postgres", health.Pinger(pg.Ping))
		slog.Info("cycle reports persisted to postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var stages []pipeline.Stage
	if cfg.Snapshot.Enabled {
		writer := manifest.NewWriter(cfg.Paths.ManifestDir, cfg.Sink.ManifestPrefix, breaker)
		snap := pipeline.NewSnapshotter(client, writer, cfg.Snapshot.Filename,
			pipeline.WithSnapshotNotifier(notifier),
			pipeline.WithSnapshotObserver(m),
		)
		stages = append(stages, pipeline.Stage{Name: report.StageSnapshot, Cycle: snap, Interval: cfg.Snapshot.Interval})
		checker.Register("manifest_dir", health.DirWritable(cfg.Paths.ManifestDir))
	}
	if cfg.Reconcile.Enabled {
		lg, err := ledger.Open(cfg)
		if err != nil {
			slog.Error("failed to open ledger", "backend", cfg.Ledger.Backend, "error", err)
			return 1
		}
		defer lg.Close()
		if resetLedger {
			if err := lg.Reset(ctx); err != nil {
				slog.Error("failed to reset ledger", "error", err)
				return 1
			}
			slog.Info("ledger reset", "backend", cfg.Ledger.Backend)
		}
		if p, ok := lg.(interface{ Ping(context.Context) error }); ok {
			checker.Register("ledger", health.Pinger(p.Ping))
		}

		rec := pipeline.NewReconciler(
			manifest.NewRepository(cfg.Paths.ManifestDir),
			document.NewFetcher(client, cfg.Paths.ScratchDir, cfg.Reconcile.AcceptedMediaType, cfg.Reconcile.AcceptedExtension),
			extract.NewPDFExtractor(),
			publish.NewPublisher(cfg.Paths.OutputDir, cfg.Sink.RecordsPrefix, breaker),
			pipeline.WithLedger(lg),
			pipeline.WithReconcileNotifier(notifier),
			pipeline.WithReconcileObserver(m),
		)
		stages = append(stages, pipeline.Stage{Name: report.StageReconcile, Cycle: rec, Interval: cfg.Reconcile.Interval})
		checker.Register("output_dir", health.DirWritable(cfg.Paths.OutputDir))
	}

	sched := pipeline.NewScheduler(recorder, stages...)

	if once {
		code := 0
		for _, st := range stages {
			rep, err := sched.RunOnce(ctx, st.Name)
			if err != nil {
				slog.Error("cycle could not run", "stage", st.Name, "error", err)
				return 1
			}
			if rep.Status == report.StatusFailed {
				code = 1
			}
		}
		return code
	}

	for _, st := range stages {
		name, maxAge := st.Name, 3*st.Interval
		checker.Register(name+"_freshness", health.Stale(func() time.Time {
			return sched.LastSuccess(name)
		}, maxAge))
	}
	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, checker)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	if err := sched.Run(ctx); err != nil {
		slog.Error("scheduler error", "error", err)
		return 1
	}
	slog.Info("drivesync stopped")
	return 0
}

func newSink(ctx context.Context, cfg config.SinkConfig) (sink.Sink, error) {
	switch cfg.Kind {
	case "dir":
		return sink.NewDir(cfg.Dir), nil
	default:
		return sink.NewS3(ctx, cfg)
	}
}
