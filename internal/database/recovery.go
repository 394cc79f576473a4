package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RecoveryResult indicates the outcome of a recovery attempt.
type RecoveryResult int

const (
	// RecoverySuccess means the database was healthy or recovered in place.
	RecoverySuccess RecoveryResult = iota
	// RecoveryFromBackup means the database was restored from a backup.
	RecoveryFromBackup
	// RecoveryFailed means all recovery attempts failed.
	RecoveryFailed
)

func (r RecoveryResult) String() string {
	switch r {
	case RecoverySuccess:
		return "success"
	case RecoveryFromBackup:
		return "restored_from_backup"
	case RecoveryFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// RecoveryReport contains details about a recovery attempt.
type RecoveryReport struct {
	Result       RecoveryResult
	DatabasePath string
	BackupUsed   string
	WALRecovered bool
	Error        error
	Steps        []RecoveryStep
}

// RecoveryStep represents a single step in the recovery process.
type RecoveryStep struct {
	Name      string
	Succeeded bool
	Message   string
	Duration  time.Duration
}

func (r *RecoveryReport) run(name string, fn func() (string, error)) bool {
	start := time.Now()
	msg, err := fn()
	step := RecoveryStep{Name: name, Succeeded: err == nil, Message: msg, Duration: time.Since(start)}
	if err != nil {
		step.Message = err.Error()
	}
	r.Steps = append(r.Steps, step)
	return step.Succeeded
}

// AttemptRecovery checks a SQLite database before the engine opens it. A
// failed integrity check is followed by a WAL replay and, failing that, a
// restore of the newest healthy backup.
func AttemptRecovery(dbPath string, backupDir string) (*RecoveryReport, error) {
	report := &RecoveryReport{DatabasePath: dbPath}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		report.Result = RecoverySuccess
		report.Steps = append(report.Steps, RecoveryStep{
			Name:      "check_exists",
			Succeeded: true,
			Message:   "database does not exist (first run)",
		})
		return report, nil
	}

	if report.run("integrity_check", func() (string, error) { return checkDatabaseIntegrity(dbPath) }) {
		report.Result = RecoverySuccess
		return report, nil
	}

	slog.Warn("database integrity check failed", "path", dbPath)

	if _, err := os.Stat(dbPath + "-wal"); err == nil {
		replayed := report.run("wal_recovery", func() (string, error) { return replayWAL(dbPath) })
		if replayed && report.run("post_wal_integrity", func() (string, error) { return checkDatabaseIntegrity(dbPath) }) {
			report.Result = RecoverySuccess
			report.WALRecovered = true
			slog.Info("database recovered via WAL replay", "path", dbPath)
			return report, nil
		}
	}

	if backupDir != "" {
		var used string
		ok := report.run("backup_restoration", func() (string, error) {
			var err error
			used, err = restoreFromBackup(dbPath, backupDir)
			return used, err
		})
		if ok {
			report.Result = RecoveryFromBackup
			report.BackupUsed = used
			slog.Info("database restored from backup", "path", dbPath, "backup", used)
			return report, nil
		}
	}

	report.Result = RecoveryFailed
	report.Error = errors.New("all recovery attempts failed")
	slog.Error("database recovery failed", "path", dbPath, "steps", len(report.Steps))

	return report, report.Error
}

// checkDatabaseIntegrity opens the file read-only and runs SQLite's integrity check.
func checkDatabaseIntegrity(dbPath string) (string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, "PRAGMA integrity_check")
	if err != nil {
		return "", fmt.Errorf("running integrity check: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return "", fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating results: %w", err)
	}

	if len(results) == 1 && results[0] == "ok" {
		return "ok", nil
	}
	return "", fmt.Errorf("integrity check failed: %s", strings.Join(results, "; "))
}

// replayWAL opens the database read-write and forces a checkpoint.
func replayWAL(dbPath string) (string, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_txlock=immediate", dbPath))
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(RESTART)"); err != nil {
		return "", fmt.Errorf("WAL checkpoint: %w", err)
	}
	return "WAL checkpoint complete", nil
}

// restoreFromBackup replaces the database with the newest backup that passes
// an integrity check. The damaged file is kept alongside for inspection.
func restoreFromBackup(dbPath string, backupDir string) (string, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return "", fmt.Errorf("reading backup directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var backups []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, candidate{filepath.Join(backupDir, entry.Name()), info.ModTime()})
	}

	if len(backups) == 0 {
		return "", errors.New("no backup files found")
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.After(backups[j].modTime)
	})

	for _, b := range backups {
		if _, err := checkDatabaseIntegrity(b.path); err != nil {
			slog.Debug("backup failed integrity check", "path", b.path, "error", err)
			continue
		}

		damaged := dbPath + ".corrupted." + time.Now().Format("20060102-150405")
		if err := os.Rename(dbPath, damaged); err != nil {
			slog.Warn("failed to preserve corrupted database", "path", dbPath, "error", err)
		}
		os.Remove(dbPath + "-wal")
		os.Remove(dbPath + "-shm")

		if err := copyFile(b.path, dbPath); err != nil {
			return "", fmt.Errorf("copying backup: %w", err)
		}
		return b.path, nil
	}

	return "", errors.New("no valid backup found")
}

// copyFile copies src to dst and syncs it to disk.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0640)
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	if err := out.Sync(); err != nil {
		return fmt.Errorf("syncing destination: %w", err)
	}
	return nil
}
