// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dvloznov/commerce-analytics/internal/temporal"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBigQuery = "bigquery"
)

const (
	configPathEnv   = "ANALYTICS_CONFIG"
	portEnv         = "PORT"
	logLevelEnv     = "LOG_LEVEL"
	logPrettyEnv    = "LOG_PRETTY"
	backendEnv      = "STORAGE_BACKEND"
	databaseDSNEnv  = "DATABASE_DSN"
	bqProjectEnv    = "BIGQUERY_PROJECT"
	bqDatasetEnv    = "BIGQUERY_DATASET"
	ingestSourceEnv = "INGEST_SOURCE"
	dupWindowEnv    = "DUPLICATE_WINDOW_SECONDS"
	preferDSTEnv    = "PREFER_DAYLIGHT"
	onStartupEnv    = "INGEST_ON_STARTUP"
	defaultTZEnv    = "DEFAULT_TIMEZONE"
	maxRangeEnv     = "MAX_RANGE_DAYS"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds the settings shared by the service binaries.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Storage StorageConfig `yaml:"storage"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Reports ReportsConfig `yaml:"reports"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// StorageConfig selects the repository backend and its connection settings.
type StorageConfig struct {
	Backend         string `yaml:"backend"`
	PostgresDSN     string `yaml:"postgres_dsn"`
	BigQueryProject string `yaml:"bigquery_project"`
	BigQueryDataset string `yaml:"bigquery_dataset"`
}

// IngestConfig drives ingestion runs.
type IngestConfig struct {
	Source                 string `yaml:"source"`
	DuplicateWindowSeconds int    `yaml:"duplicate_window_seconds"`
	// PreferDaylight picks the daylight-saving reading of wall clocks repeated
	// by a backward transition.
	PreferDaylight bool `yaml:"prefer_daylight"`
	OnStartup      bool `yaml:"on_startup"`
	QueueSize      int  `yaml:"queue_size"`
	MaxRetries     int  `yaml:"max_retries"`
}

// DuplicateWindow returns the window as a duration.
func (c IngestConfig) DuplicateWindow() time.Duration {
	return time.Duration(c.DuplicateWindowSeconds) * time.Second
}

type ReportsConfig struct {
	DefaultTimezone string `yaml:"default_timezone"`
	// MaxRangeDays caps daily report ranges; 0 means no limit.
	MaxRangeDays int `yaml:"max_range_days"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Log: LogConfig{Level: "info", Pretty: true},
		Storage: StorageConfig{
			Backend:         BackendMemory,
			BigQueryDataset: "analytics",
		},
		Ingest: IngestConfig{
			Source:                 "data/transactions.csv",
			DuplicateWindowSeconds: 60,
			OnStartup:              true,
			QueueSize:              16,
		},
		Reports: ReportsConfig{
			DefaultTimezone: "UTC",
			MaxRangeDays:    366,
		},
	}
}

// Load builds the configuration. path names a YAML file; when empty the
// ANALYTICS_CONFIG variable is consulted and a missing file is not an error.
// A .env file in the working directory is loaded without overriding variables
// already set in the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("Load: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("Load: parse %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("Load: .env: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, fmt.Errorf("Load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString := func(env string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	setInt := func(env string, dst *int) error {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", env, v, err)
		}
		*dst = n
		return nil
	}
	setBool := func(env string, dst *bool) error {
		v := strings.TrimSpace(os.Getenv(env))
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", env, v, err)
		}
		*dst = b
		return nil
	}

	setString(logLevelEnv, &c.Log.Level)
	setString(backendEnv, &c.Storage.Backend)
	setString(databaseDSNEnv, &c.Storage.PostgresDSN)
	setString(bqProjectEnv, &c.Storage.BigQueryProject)
	setString(bqDatasetEnv, &c.Storage.BigQueryDataset)
	setString(ingestSourceEnv, &c.Ingest.Source)
	setString(defaultTZEnv, &c.Reports.DefaultTimezone)

	for env, dst := range map[string]*int{
		portEnv:      &c.Server.Port,
		dupWindowEnv: &c.Ingest.DuplicateWindowSeconds,
		maxRangeEnv:  &c.Reports.MaxRangeDays,
	} {
		if err := setInt(env, dst); err != nil {
			return err
		}
	}
	for env, dst := range map[string]*bool{
		logPrettyEnv: &c.Log.Pretty,
		preferDSTEnv: &c.Ingest.PreferDaylight,
		onStartupEnv: &c.Ingest.OnStartup,
	} {
		if err := setBool(env, dst); err != nil {
			return err
		}
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	return nil
}

// Validate checks that the settings are usable.
func (c Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendBigQuery:
		if c.Storage.BigQueryProject == "" {
			errs = append(errs, errors.New("storage.bigquery_project is required for the bigquery backend"))
		}
		if c.Storage.BigQueryDataset == "" {
			errs = append(errs, errors.New("storage.bigquery_dataset is required for the bigquery backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.backend %q", c.Storage.Backend))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Ingest.DuplicateWindowSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ingest.duplicate_window_seconds must be positive, got %d", c.Ingest.DuplicateWindowSeconds))
	}
	if c.Ingest.QueueSize <= 0 {
		errs = append(errs, fmt.Errorf("ingest.queue_size must be positive, got %d", c.Ingest.QueueSize))
	}
	if c.Ingest.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("ingest.max_retries must not be negative, got %d", c.Ingest.MaxRetries))
	}
	if c.Reports.MaxRangeDays < 0 {
		errs = append(errs, fmt.Errorf("reports.max_range_days must not be negative, got %d", c.Reports.MaxRangeDays))
	}
	if c.Reports.DefaultTimezone != "UTC" {
		if _, ok := temporal.LookupZone(c.Reports.DefaultTimezone); !ok {
			errs = append(errs, fmt.Errorf("unknown reports.default_timezone %q", c.Reports.DefaultTimezone))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}
