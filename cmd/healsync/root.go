package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/healsync/healsync/internal/backup"
	"github.com/healsync/healsync/internal/config"
	"github.com/healsync/healsync/internal/database"
)

var (
	configPath string
	debugMode  bool

	cfg     *config.Config
	cfgPath string
	logFile io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "healsync",
	Short:         "City healthcare coordination engine",
	Long:          "HealSync runs hospitals, labs, pharmacies, suppliers and the city coordinator as cooperating actors that detect outbreaks and keep supplies moving.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logFile != nil {
			logFile.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
}

// setup loads configuration and installs the default logger.
func setup() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	var err error
	cfg, cfgPath, err = config.Load(configPath, true)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logLevel := slog.LevelInfo
	if debugMode {
		logLevel = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case config.LogLevelDebug:
			logLevel = slog.LevelDebug
		case config.LogLevelWarn:
			logLevel = slog.LevelWarn
		case config.LogLevelError:
			logLevel = slog.LevelError
		}
	}

	logPath, err := config.EnsureLogDir(cfg)
	if err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	var logHandler slog.Handler
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		logFile = f
		logHandler = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: logLevel})
	} else {
		logHandler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	slog.SetDefault(slog.New(logHandler))

	slog.Debug("configuration loaded", "path", cfgPath, "version", Version)
	return nil
}

// openDatabase connects to the configured store and applies pending
// migrations. SQLite files are checked and recovered from backup first.
func openDatabase(ctx context.Context) (*database.DB, error) {
	var (
		db  *database.DB
		err error
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err = database.OpenPostgres(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
	default:
		db, err = openSQLite()
		if err != nil {
			return nil, err
		}
	}

	if err := attachBackupUpload(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	migrator, err := database.NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	result, err := migrator.MigrateUp(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(result.Applied) > 0 {
		slog.Info("applied migrations",
			"count", len(result.Applied),
			"to_version", result.TargetVersion,
		)
	}
	if err := db.HealthCheck(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func openSQLite() (*database.DB, error) {
	dbPath, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("ensuring data directory: %w", err)
	}

	backupDir, err := config.BackupDir(cfg)
	if err != nil {
		slog.Warn("failed to create backup directory", "error", err)
		backupDir = ""
	}

	// Attempt database recovery if needed
	if _, err := os.Stat(dbPath); err == nil {
		report, err := database.AttemptRecovery(dbPath, backupDir)
		if err != nil {
			slog.Error("database recovery failed",
				"path", dbPath,
				"steps", len(report.Steps),
			)
			return nil, fmt.Errorf("database recovery failed: %w", err)
		}

		switch report.Result {
		case database.RecoveryFromBackup:
			slog.Warn("database restored from backup",
				"backup", report.BackupUsed,
			)
		case database.RecoverySuccess:
			slog.Debug("database integrity verified")
		}
	}

	db, err := database.Open(dbPath, &cfg.Database, backupDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// attachBackupUpload ships every completed backup to S3 when enabled.
func attachBackupUpload(ctx context.Context, db *database.DB) error {
	if !cfg.Backup.S3.Enabled || db.Dialect() != database.DialectSQLite {
		return nil
	}
	up, err := backup.New(ctx, cfg.Backup.S3, backup.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("configuring backup upload: %w", err)
	}
	db.SetBackupHook(up.Upload)
	slog.Info("backup upload enabled", "bucket", cfg.Backup.S3.Bucket)
	return nil
}

func closeDatabase(db *database.DB) {
	slog.Info("closing database")
	if err := db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}
