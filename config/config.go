package config

import (
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Stats      StatsConfig      `yaml:"stats"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// WorkerPoolConfig holds the configuration for the alert worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey      string  `yaml:"vapid_public_key"`
	PrivateKey     string  `yaml:"vapid_private_key"`
	Subject        string  `yaml:"subject"`
	TTL            int     `yaml:"ttl"`
	SendsPerSecond float64 `yaml:"sends_per_second"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	CacheTTLSeconds int           `yaml:"cache_ttl_seconds"`
	CacheTTL        time.Duration `yaml:"-"`
	MaxUploadMB     int64         `yaml:"max_upload_mb"`
}

// IngestConfig controls the XML import pipeline.
type IngestConfig struct {
	UploadDir          string `yaml:"upload_dir"`
	DemoFallback       *bool  `yaml:"demo_fallback"`
	DemoSeed           int64  `yaml:"demo_seed"`
	DefaultMachineID   string `yaml:"default_machine_id"`
	DefaultMachineName string `yaml:"default_machine_name"`

	// InboxDir is polled for report files when set.
	InboxDir            string        `yaml:"inbox_dir"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
}

// DemoEnabled reports whether synthetic data may be produced when a report has no usable structure.
func (i IngestConfig) DemoEnabled() bool {
	return i.DemoFallback == nil || *i.DemoFallback
}

// StatsConfig holds defaults for the aggregation queries.
type StatsConfig struct {
	CriticalThresholdMinutes int `yaml:"critical_threshold_minutes"`
	CriticalPageSize         int `yaml:"critical_page_size"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// LoggingConfig selects the logrus level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills every unset option with its default value.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 20
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Ingest.UploadDir == "" {
		cfg.Ingest.UploadDir = "./uploads"
	}
	if cfg.Ingest.DefaultMachineID == "" {
		cfg.Ingest.DefaultMachineID = "UNKNOWN"
	}
	if cfg.Ingest.DefaultMachineName == "" {
		cfg.Ingest.DefaultMachineName = "Unknown machine"
	}
	if cfg.Ingest.PollIntervalSeconds <= 0 {
		cfg.Ingest.PollIntervalSeconds = 60
	}
	cfg.Ingest.PollInterval = time.Duration(cfg.Ingest.PollIntervalSeconds) * time.Second

	if cfg.Stats.CriticalThresholdMinutes <= 0 {
		cfg.Stats.CriticalThresholdMinutes = 120
	}
	if cfg.Stats.CriticalPageSize <= 0 {
		cfg.Stats.CriticalPageSize = 50
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.SendsPerSecond <= 0 {
		cfg.Push.SendsPerSecond = 5
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// ConfigureLogging applies the logging section to the standard logrus logger.
func (cfg *Config) ConfigureLogging() {
	level, err := log.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Warnf("invalid logging.level %q; using info", cfg.Logging.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Logging.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)
}
