package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides configuration values from HEALSYNC_* variables.
func ApplyEnv(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			dst.Duration = d
		}
	}

	str("SCORING_URL", &cfg.Scoring.BaseURL)
	duration("SCORING_TIMEOUT", &cfg.Scoring.Timeout)

	var level, driver string
	str("LOG_LEVEL", &level)
	if level != "" {
		cfg.Logging.Level = LogLevel(level)
	}
	str("LOG_FILE", &cfg.Logging.File)

	str("DATABASE_DRIVER", &driver)
	if driver != "" {
		cfg.Database.Driver = DatabaseDriver(driver)
	}
	str("DATABASE_PATH", &cfg.Database.Path)
	str("DATABASE_DSN", &cfg.Database.DSN)

	boolean("S3_ENABLED", &cfg.Backup.S3.Enabled)
	str("S3_BUCKET", &cfg.Backup.S3.Bucket)
	str("S3_REGION", &cfg.Backup.S3.Region)
	str("S3_ENDPOINT", &cfg.Backup.S3.Endpoint)

	boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	str("METRICS_ADDR", &cfg.Metrics.ListenAddr)

	boolean("NATURAL_DRIFT", &cfg.Simulation.NaturalDrift)
	if v, ok := os.LookupEnv(EnvPrefix + "RANDOM_SEED"); ok {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sRANDOM_SEED: %w", EnvPrefix, err))
		} else {
			cfg.Simulation.RandomSeed = seed
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %w", errors.Join(errs...))
	}
	return nil
}
