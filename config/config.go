package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Queue    QueueConfig    `yaml:"queue"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
	// Fanout bounds concurrent sends to one user's devices.
	Fanout int `yaml:"fanout"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// ScheduleConfig controls how machine transitions are turned into intents.
type ScheduleConfig struct {
	ReservationHoldSeconds int           `yaml:"reservation_hold_seconds"`
	ReservationHold        time.Duration `yaml:"-"`
}

// QueueConfig configures the deferred-execution queue.
type QueueConfig struct {
	// ExecuteURL is the dispatcher entry point the queue calls back.
	ExecuteURL          string        `yaml:"execute_url"`
	Workers             int           `yaml:"workers"`
	MaxAttempts         int           `yaml:"max_attempts"`
	RetryBackoffSeconds int           `yaml:"retry_backoff_seconds"`
	RetryBackoff        time.Duration `yaml:"-"`
	RatePerSec          float64       `yaml:"rate_per_sec"`
	TimeoutSeconds      int           `yaml:"timeout_seconds"`
	HTTPProxy           string        `yaml:"http_proxy"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver                 string `yaml:"driver"`
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
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

// ApplyDefaults fills zero values with their defaults.
func (cfg *Config) ApplyDefaults() {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
	if cfg.Push.Fanout <= 0 {
		cfg.Push.Fanout = 4
	}

	if cfg.Schedule.ReservationHoldSeconds <= 0 {
		cfg.Schedule.ReservationHoldSeconds = 300
	}
	cfg.Schedule.ReservationHold = time.Duration(cfg.Schedule.ReservationHoldSeconds) * time.Second

	if cfg.Queue.ExecuteURL == "" {
		cfg.Queue.ExecuteURL = "http://localhost:" + strconv.Itoa(cfg.Server.Port) + "/api/tasks/execute"
	}
	if cfg.Queue.Workers <= 0 {
		log.Printf("queue.workers is not set or invalid; defaulting to 1")
		cfg.Queue.Workers = 1
	}
	if cfg.Queue.MaxAttempts <= 0 {
		cfg.Queue.MaxAttempts = 5
	}
	if cfg.Queue.RetryBackoffSeconds <= 0 {
		cfg.Queue.RetryBackoffSeconds = 10
	}
	cfg.Queue.RetryBackoff = time.Duration(cfg.Queue.RetryBackoffSeconds) * time.Second
	if cfg.Queue.RatePerSec <= 0 {
		cfg.Queue.RatePerSec = 20
	}
	if cfg.Queue.TimeoutSeconds <= 0 {
		cfg.Queue.TimeoutSeconds = 30
	}
}
