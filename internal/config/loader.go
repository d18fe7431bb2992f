package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "ruidmap.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "RUIDMAP_PORT")
	setString(&cfg.Server.CORSOrigin, "RUIDMAP_CORS_ORIGIN")
	setString(&cfg.Server.AuthUser, "RUIDMAP_AUTH_USER")
	setString(&cfg.Server.AuthHash, "RUIDMAP_AUTH_HASH")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "RUIDMAP_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "RUIDMAP_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "RUIDMAP_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "RUIDMAP_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "RUIDMAP_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	setBool(&cfg.Cache.Enabled, "RUIDMAP_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "RUIDMAP_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "RUIDMAP_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "RUIDMAP_CACHE_L2_TTL")
	setDuration(&cfg.Cache.TTL, "RUIDMAP_CACHE_TTL")

	setString(&cfg.Logging.Level, "RUIDMAP_LOG_LEVEL")
	setString(&cfg.Logging.Service, "RUIDMAP_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "RUIDMAP_LOG_ASYNC")
	setInt(&cfg.Logging.Buffer, "RUIDMAP_LOG_BUFFER")
	setInt(&cfg.Logging.Workers, "RUIDMAP_LOG_WORKERS")

	setString(&cfg.Archive.Schedule, "RUIDMAP_ARCHIVE_SCHEDULE")
	setDuration(&cfg.Archive.Retention, "RUIDMAP_ARCHIVE_RETENTION")

	setBool(&cfg.Telemetry.Enabled, "RUIDMAP_OTEL_ENABLED")
	setString(&cfg.Telemetry.Endpoint, "RUIDMAP_OTEL_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Archive.Retention < 0 {
		return errors.New("archive.retention must not be negative")
	}
	if (cfg.Server.AuthUser == "") != (cfg.Server.AuthHash == "") {
		return errors.New("server.auth_user and server.auth_hash must be set together")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
