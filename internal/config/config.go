// Package config provides configuration management for HealSync.
// Configurations are loaded from TOML files with XDG-compliant paths and
// may be overridden from the environment.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete application configuration.
type Config struct {
	City         CityConfig         `toml:"city"`
	Simulation   SimulationConfig   `toml:"simulation"`
	Scheduler    SchedulerConfig    `toml:"scheduler"`
	Coordination CoordinationConfig `toml:"coordination"`
	Scoring      ScoringConfig      `toml:"scoring"`
	Logging      LoggingConfig      `toml:"logging"`
	Database     DatabaseConfig     `toml:"database"`
	Backup       BackupConfig       `toml:"backup"`
	Metrics      MetricsConfig      `toml:"metrics"`
}

// Duration is a time.Duration that reads and writes as a Go duration string.
type Duration struct {
	time.Duration
}

// Dur wraps a time.Duration.
func Dur(d time.Duration) Duration {
	return Duration{Duration: d}
}

// UnmarshalText parses values such as "8s" or "1m30s".
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// CityConfig sizes the seeded facility network.
type CityConfig struct {
	Name              string `toml:"name"`
	HospitalsPerZone  int    `toml:"hospitals_per_zone"`
	LabsPerZone       int    `toml:"labs_per_zone"`
	PharmaciesPerZone int    `toml:"pharmacies_per_zone"`
	Suppliers         int    `toml:"suppliers"`
}

// SimulationConfig controls the simulated clock and random drift.
type SimulationConfig struct {
	// TimeScale is simulated seconds per real second.
	TimeScale      float64  `toml:"time_scale"`
	NaturalDrift   bool     `toml:"natural_drift"`
	RandomSeed     int64    `toml:"random_seed"`
	OrderRetention Duration `toml:"order_retention"`
	// PendingOrderTimeout is how long a pharmacy waits on an unanswered
	// order before reordering, in simulated time.
	PendingOrderTimeout Duration `toml:"pending_order_timeout"`
}

// SchedulerConfig sets per-actor tick cadences and error backoff.
type SchedulerConfig struct {
	HospitalInterval Duration `toml:"hospital_interval"`
	LabInterval      Duration `toml:"lab_interval"`
	PharmacyInterval Duration `toml:"pharmacy_interval"`
	SupplierInterval Duration `toml:"supplier_interval"`
	CityInterval     Duration `toml:"city_interval"`
	ScenarioInterval Duration `toml:"scenario_interval"`
	BackoffBase      Duration `toml:"backoff_base"`
	BackoffMax       Duration `toml:"backoff_max"`
}

// CoordinationConfig spreads cross-actor reactions over time.
type CoordinationConfig struct {
	StaggerStep  Duration `toml:"stagger_step"`
	StaggerSlots int      `toml:"stagger_slots"`
	JitterMax    Duration `toml:"jitter_max"`
}

// ScoringConfig points at the external prediction service.
type ScoringConfig struct {
	// BaseURL is empty to run on fallback rules only.
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level LogLevel `toml:"level"`
	File  string   `toml:"file"`
}

// LogLevel defines logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// DatabaseDriver selects the entity store backend.
type DatabaseDriver string

const (
	DriverSQLite   DatabaseDriver = "sqlite"
	DriverPostgres DatabaseDriver = "postgres"
)

// DatabaseConfig controls the entity store.
type DatabaseConfig struct {
	Driver              DatabaseDriver `toml:"driver"`
	Path                string         `toml:"path"`
	DSN                 string         `toml:"dsn"`
	BackupIntervalHours int            `toml:"backup_interval_hours"`
	BackupRetentionDays int            `toml:"backup_retention_days"`
}

// BackupConfig controls offsite copies of database backups.
type BackupConfig struct {
	S3 S3Config `toml:"s3"`
}

// S3Config describes the bucket backups are uploaded to.
type S3Config struct {
	Enabled   bool   `toml:"enabled"`
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := c.City.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("city: %w", err))
	}

	if err := c.Simulation.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("simulation: %w", err))
	}

	if err := c.Scheduler.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}

	if err := c.Coordination.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("coordination: %w", err))
	}

	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Backup.S3.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backup.s3: %w", err))
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics: listen_addr is required when enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the city configuration is valid.
func (c *CityConfig) Validate() error {
	var errs []error

	if c.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}

	if c.HospitalsPerZone < 1 || c.LabsPerZone < 1 || c.PharmaciesPerZone < 1 {
		errs = append(errs, errors.New("every zone needs at least one hospital, lab and pharmacy"))
	}

	if c.Suppliers < 1 {
		errs = append(errs, errors.New("suppliers must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the simulation configuration is valid.
func (s *SimulationConfig) Validate() error {
	var errs []error

	if s.TimeScale <= 0 {
		errs = append(errs, errors.New("time_scale must be positive"))
	}

	if s.OrderRetention.Duration < 0 {
		errs = append(errs, errors.New("order_retention must be non-negative"))
	}
	if s.PendingOrderTimeout.Duration < 0 {
		errs = append(errs, errors.New("pending_order_timeout must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the scheduler configuration is valid.
func (s *SchedulerConfig) Validate() error {
	var errs []error

	intervals := map[string]Duration{
		"hospital_interval": s.HospitalInterval,
		"lab_interval":      s.LabInterval,
		"pharmacy_interval": s.PharmacyInterval,
		"supplier_interval": s.SupplierInterval,
		"city_interval":     s.CityInterval,
		"scenario_interval": s.ScenarioInterval,
	}
	for name, d := range intervals {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if s.BackoffBase.Duration < 0 || s.BackoffMax.Duration < s.BackoffBase.Duration {
		errs = append(errs, errors.New("backoff_max must be at least backoff_base"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the coordination configuration is valid.
func (c *CoordinationConfig) Validate() error {
	var errs []error

	if c.StaggerStep.Duration < 0 || c.JitterMax.Duration < 0 {
		errs = append(errs, errors.New("stagger_step and jitter_max must be non-negative"))
	}

	if c.StaggerSlots < 1 {
		errs = append(errs, errors.New("stagger_slots must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the scoring configuration is valid.
func (s *ScoringConfig) Validate() error {
	if s.BaseURL != "" && s.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive when base_url is set")
	}
	return nil
}

// Validate checks that the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}

	if !validLevels[l.Level] && l.Level != "" {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	return nil
}

// Validate checks that the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	var errs []error

	switch d.Driver {
	case DriverSQLite, "":
		if d.Path == "" {
			errs = append(errs, errors.New("path is required for sqlite"))
		}
	case DriverPostgres:
		if d.DSN == "" {
			errs = append(errs, errors.New("dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid driver: %s", d.Driver))
	}

	if d.BackupIntervalHours < 0 {
		errs = append(errs, errors.New("backup_interval_hours must be non-negative"))
	}

	if d.BackupRetentionDays < 0 {
		errs = append(errs, errors.New("backup_retention_days must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the S3 configuration is valid.
func (s *S3Config) Validate() error {
	if !s.Enabled {
		return nil
	}

	var errs []error

	if s.Bucket == "" {
		errs = append(errs, errors.New("bucket is required when enabled"))
	}

	if s.Region == "" {
		errs = append(errs, errors.New("region is required when enabled"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		City: CityConfig{
			Name:              "HealSync City",
			HospitalsPerZone:  1,
			LabsPerZone:       1,
			PharmaciesPerZone: 1,
			Suppliers:         2,
		},
		Simulation: SimulationConfig{
			TimeScale:           3600,
			NaturalDrift:        true,
			RandomSeed:          0,
			OrderRetention:      Dur(time.Minute),
			PendingOrderTimeout: Dur(6 * time.Hour),
		},
		Scheduler: SchedulerConfig{
			HospitalInterval: Dur(8 * time.Second),
			LabInterval:      Dur(10 * time.Second),
			PharmacyInterval: Dur(12 * time.Second),
			SupplierInterval: Dur(15 * time.Second),
			CityInterval:     Dur(15 * time.Second),
			ScenarioInterval: Dur(10 * time.Second),
			BackoffBase:      Dur(time.Second),
			BackoffMax:       Dur(time.Minute),
		},
		Coordination: CoordinationConfig{
			StaggerStep:  Dur(400 * time.Millisecond),
			StaggerSlots: 10,
			JitterMax:    Dur(time.Second),
		},
		Scoring: ScoringConfig{
			BaseURL: "",
			Timeout: Dur(2 * time.Second),
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
			File:  "",
		},
		Database: DatabaseConfig{
			Driver:              DriverSQLite,
			Path:                "healsync.db",
			BackupIntervalHours: 24,
			BackupRetentionDays: 14,
		},
		Backup: BackupConfig{
			S3: S3Config{
				Enabled: false,
				Prefix:  "healsync/backups",
			},
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:9464",
		},
	}
}
