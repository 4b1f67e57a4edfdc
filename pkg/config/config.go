// Package config loads and validates drivesync configuration from YAML files
// with environment-variable overrides. The resulting Config is built once at
// startup and handed to each component; nothing below cmd/ reads the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/drivesync/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Remote    RemoteConfig    `yaml:"remote"`
	Sink      SinkConfig      `yaml:"sink"`
	Paths     PathsConfig     `yaml:"paths"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Redis     RedisConfig     `yaml:"redis"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// RemoteConfig identifies the remote drive and the app registration used to
// reach it.
type RemoteConfig struct {
	TenantID     string        `yaml:"tenantId"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	SiteHost     string        `yaml:"siteHost"`
	SitePath     string        `yaml:"sitePath"`
	DriveName    string        `yaml:"driveName"`
	BaseURL      string        `yaml:"baseUrl"`
	TokenURL     string        `yaml:"tokenUrl"`
	Timeout      time.Duration `yaml:"timeout"`
}

// SinkConfig selects the durable sink and its key prefixes.
type SinkConfig struct {
	Kind           string        `yaml:"kind"`
	Bucket         string        `yaml:"bucket"`
	Region         string        `yaml:"region"`
	Endpoint       string        `yaml:"endpoint"`
	UsePathStyle   bool          `yaml:"usePathStyle"`
	AccessKey      string        `yaml:"accessKey"`
	SecretKey      string        `yaml:"secretKey"`
	Dir            string        `yaml:"dir"`
	ManifestPrefix string        `yaml:"manifestPrefix"`
	RecordsPrefix  string        `yaml:"recordsPrefix"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig controls the circuit breaker in front of the sink.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failureThreshold"`
	ResetTimeout     time.Duration `yaml:"resetTimeout"`
	CallTimeout      time.Duration `yaml:"callTimeout"`
}

// PathsConfig holds the local directories used by both stages.
type PathsConfig struct {
	ManifestDir string `yaml:"manifestDir"`
	ScratchDir  string `yaml:"scratchDir"`
	OutputDir   string `yaml:"outputDir"`
	StateDir    string `yaml:"stateDir"`
}

// SnapshotConfig controls Stage A.
type SnapshotConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	Filename string        `yaml:"filename"`
}

// ReconcileConfig controls Stage B.
type ReconcileConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Interval          time.Duration `yaml:"interval"`
	AcceptedMediaType string        `yaml:"acceptedMediaType"`
	AcceptedExtension string        `yaml:"acceptedExtension"`
}

// LedgerConfig selects where processed-document state is kept.
type LedgerConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// RedisConfig holds Redis connection parameters for the shared ledger.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	KeyPrefix string        `yaml:"keyPrefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// PostgresConfig holds PostgreSQL connection parameters for the report store.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds broker and topic settings for event notifications.
type KafkaConfig struct {
	Enabled bool        `yaml:"enabled"`
	Brokers []string    `yaml:"brokers"`
	Topics  KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical event names to their Kafka topic strings.
type KafkaTopics struct {
	ManifestWritten string `yaml:"manifestWritten"`
	RecordPublished string `yaml:"recordPublished"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics and health server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with the defaults the original deployment used.
func Default() *Config {
	return &Config{
		Remote: RemoteConfig{
			DriveName: "Documents",
			BaseURL:   "https://graph.microsoft.com/v1.0",
			Timeout:   60 * time.Second,
		},
		Sink: SinkConfig{
			Kind:           "s3",
			Region:         "us-east-1",
			ManifestPrefix: "JSON Master",
			RecordsPrefix:  "sharepoint-export/",
			Breaker: BreakerConfig{
				FailureThreshold: 5,
				ResetTimeout:     30 * time.Second,
				CallTimeout:      2 * time.Minute,
			},
		},
		Paths: PathsConfig{
			ManifestDir: "./jsons",
			ScratchDir:  "temp_pdfs",
			OutputDir:   "temp_pdfs",
			StateDir:    "./state",
		},
		Snapshot: SnapshotConfig{
			Enabled:  true,
			Interval: 600 * time.Second,
			Filename: "sharepoint_data.json",
		},
		Reconcile: ReconcileConfig{
			Enabled:           true,
			Interval:          900 * time.Second,
			AcceptedMediaType: "application/pdf",
			AcceptedExtension: ".pdf",
		},
		Ledger: LedgerConfig{
			Backend: "sqlite",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "drivesync:ledger:",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "drivesync",
			User:            "drivesync",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers: []string{"localhost:9092"},
			Topics: KafkaTopics{
				ManifestWritten: "drivesync.manifest-written",
				RecordPublished: "drivesync.record-published",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate reports missing or inconsistent settings. Any error here is a
// configuration error and must stop the process before a cycle runs.
func (c *Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}

	require("remote.tenantId", c.Remote.TenantID)
	require("remote.clientId", c.Remote.ClientID)
	require("remote.clientSecret", c.Remote.ClientSecret)
	require("remote.siteHost", c.Remote.SiteHost)
	require("remote.sitePath", c.Remote.SitePath)
	require("remote.driveName", c.Remote.DriveName)
	require("paths.manifestDir", c.Paths.ManifestDir)

	switch c.Sink.Kind {
	case "s3":
		require("sink.bucket", c.Sink.Bucket)
		require("sink.accessKey", c.Sink.AccessKey)
		require("sink.secretKey", c.Sink.SecretKey)
	case "dir":
		require("sink.dir", c.Sink.Dir)
	default:
		return apperrors.Newf(apperrors.ErrConfig, "unknown sink.kind %q", c.Sink.Kind)
	}

	if c.Snapshot.Enabled {
		require("snapshot.filename", c.Snapshot.Filename)
		if c.Snapshot.Interval <= 0 {
			missing = append(missing, "snapshot.interval")
		}
	}
	if c.Reconcile.Enabled {
		require("paths.scratchDir", c.Paths.ScratchDir)
		require("paths.outputDir", c.Paths.OutputDir)
		require("reconcile.acceptedMediaType", c.Reconcile.AcceptedMediaType)
		require("reconcile.acceptedExtension", c.Reconcile.AcceptedExtension)
		if c.Reconcile.Interval <= 0 {
			missing = append(missing, "reconcile.interval")
		}
	}
	if !c.Snapshot.Enabled && !c.Reconcile.Enabled {
		return apperrors.New(apperrors.ErrConfig, "at least one of snapshot or reconcile must be enabled")
	}

	switch c.Ledger.Backend {
	case "none", "redis":
	case "sqlite":
		require("paths.stateDir", c.Paths.StateDir)
	default:
		return apperrors.Newf(apperrors.ErrConfig, "unknown ledger.backend %q", c.Ledger.Backend)
	}

	if len(missing) > 0 {
		return apperrors.Newf(apperrors.ErrConfig, "missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Reconcile.Enabled && within(c.Paths.OutputDir, c.Paths.ManifestDir) {
		return apperrors.Newf(apperrors.ErrConfig,
			"paths.outputDir %q must not be or sit inside paths.manifestDir %q", c.Paths.OutputDir, c.Paths.ManifestDir)
	}
	return nil
}

// within reports whether dir is parent or a directory below it. Records
// written into the manifest directory would be taken for manifests.
func within(dir, parent string) bool {
	d, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	p, err := filepath.Abs(parent)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(p, d)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// applyEnvOverrides reads DRIVESYNC_* variables through getenv and overrides
// the corresponding config fields. The legacy variable names of the original
// deployment (TENANT_ID, S3_BUCKET, ...) are accepted as a fallback.
func applyEnvOverrides(cfg *Config, getenv func(string) string) {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	seconds := func(dst *time.Duration, keys ...string) {
		for _, k := range keys {
			v := getenv(k)
			if v == "" {
				continue
			}
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
				return
			}
			if n, err := strconv.Atoi(v); err == nil {
				*dst = time.Duration(n) * time.Second
				return
			}
		}
	}
	boolean := func(dst *bool, key string) {
		if v := getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(&cfg.Remote.TenantID, "DRIVESYNC_TENANT_ID", "TENANT_ID")
	str(&cfg.Remote.ClientID, "DRIVESYNC_CLIENT_ID", "CLIENT_ID")
	str(&cfg.Remote.ClientSecret, "DRIVESYNC_CLIENT_SECRET", "CLIENT_SECRET")
	str(&cfg.Remote.SiteHost, "DRIVESYNC_SITE_HOST", "SHAREPOINT_SITE")
	str(&cfg.Remote.SitePath, "DRIVESYNC_SITE_PATH", "SITE_PATH")
	str(&cfg.Remote.DriveName, "DRIVESYNC_DRIVE_NAME", "DRIVE_NAME")
	str(&cfg.Remote.BaseURL, "DRIVESYNC_GRAPH_URL")
	str(&cfg.Remote.TokenURL, "DRIVESYNC_TOKEN_URL")

	str(&cfg.Sink.Kind, "DRIVESYNC_SINK_KIND")
	str(&cfg.Sink.Bucket, "DRIVESYNC_S3_BUCKET", "S3_BUCKET")
	str(&cfg.Sink.Region, "DRIVESYNC_S3_REGION")
	str(&cfg.Sink.Endpoint, "DRIVESYNC_S3_ENDPOINT")
	str(&cfg.Sink.AccessKey, "DRIVESYNC_AWS_ACCESS_KEY", "AWS_ACCESS_KEY")
	str(&cfg.Sink.SecretKey, "DRIVESYNC_AWS_SECRET_KEY", "AWS_SECRET_KEY")
	str(&cfg.Sink.Dir, "DRIVESYNC_SINK_DIR")
	str(&cfg.Sink.ManifestPrefix, "DRIVESYNC_MANIFEST_PREFIX", "S3_JSON_FOLDER")
	str(&cfg.Sink.RecordsPrefix, "DRIVESYNC_RECORDS_PREFIX", "S3_PREFIX")

	str(&cfg.Paths.ManifestDir, "DRIVESYNC_MANIFEST_DIR", "GENERATE_PATH")
	str(&cfg.Paths.ScratchDir, "DRIVESYNC_SCRATCH_DIR", "LOCAL_TEMP_DIR")
	str(&cfg.Paths.OutputDir, "DRIVESYNC_OUTPUT_DIR", "LOCAL_TEMP_DIR")
	str(&cfg.Paths.StateDir, "DRIVESYNC_STATE_DIR")

	str(&cfg.Snapshot.Filename, "DRIVESYNC_MANIFEST_FILENAME", "FINAL_JSON_FILENAME")
	seconds(&cfg.Snapshot.Interval, "DRIVESYNC_SNAPSHOT_INTERVAL", "STEP1_INTERVAL")
	boolean(&cfg.Snapshot.Enabled, "DRIVESYNC_SNAPSHOT_ENABLED")
	seconds(&cfg.Reconcile.Interval, "DRIVESYNC_RECONCILE_INTERVAL", "STEP2_INTERVAL")
	boolean(&cfg.Reconcile.Enabled, "DRIVESYNC_RECONCILE_ENABLED")
	str(&cfg.Reconcile.AcceptedMediaType, "DRIVESYNC_ACCEPTED_MEDIA_TYPE")
	str(&cfg.Reconcile.AcceptedExtension, "DRIVESYNC_ACCEPTED_EXTENSION")

	str(&cfg.Ledger.Backend, "DRIVESYNC_LEDGER_BACKEND")
	str(&cfg.Redis.Addr, "DRIVESYNC_REDIS_ADDR")
	str(&cfg.Redis.Password, "DRIVESYNC_REDIS_PASSWORD")

	boolean(&cfg.Postgres.Enabled, "DRIVESYNC_POSTGRES_ENABLED")
	str(&cfg.Postgres.Host, "DRIVESYNC_POSTGRES_HOST")
	if v := getenv("DRIVESYNC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	str(&cfg.Postgres.Database, "DRIVESYNC_POSTGRES_DATABASE")
	str(&cfg.Postgres.User, "DRIVESYNC_POSTGRES_USER")
	str(&cfg.Postgres.Password, "DRIVESYNC_POSTGRES_PASSWORD")

	boolean(&cfg.Kafka.Enabled, "DRIVESYNC_KAFKA_ENABLED")
	if v := getenv("DRIVESYNC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}

	str(&cfg.Logging.Level, "DRIVESYNC_LOGGING_LEVEL")
	str(&cfg.Logging.Format, "DRIVESYNC_LOGGING_FORMAT")
	if v := getenv("DRIVESYNC_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
