package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/healsync/healsync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE entities SET state = ? WHERE id = ? AND version = ?"

	assert.Equal(t, q, DialectSQLite.Rebind(q))
	assert.Equal(t, "UPDATE entities SET state = $1 WHERE id = $2 AND version = $3", DialectPostgres.Rebind(q))
}

func TestMigrator_UpStatusDown(t *testing.T) {
	db, err := NewInMemory()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	m, err := NewMigrator(db)
	require.NoError(t, err)

	result, err := m.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.CurrentVersion)
	assert.Equal(t, 2, result.TargetVersion)
	assert.Len(t, result.Applied, 2)

	var n int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entities").Scan(&n))
	assert.Zero(t, n)

	again, err := m.MigrateUp(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.Applied, "second run should be a no-op")

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, mig := range status {
		assert.True(t, mig.Applied, "migration %d should be applied", mig.Version)
		assert.False(t, mig.AppliedAt.IsZero())
	}

	down, err := m.MigrateDown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, down.TargetVersion)

	_, err = db.ExecContext(ctx, "SELECT COUNT(*) FROM activity_log")
	assert.Error(t, err, "activity_log should be dropped")

	version, err := m.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestSplitStatements(t *testing.T) {
	script := `-- leading comment; with a semicolon
CREATE TABLE a (x TEXT DEFAULT 'a;b');
-- another comment
CREATE INDEX idx_a ON a(x)`

	stmts := splitStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "'a;b'")
	assert.Equal(t, "CREATE INDEX idx_a ON a(x)", stmts[1])
}

func TestParseMigration(t *testing.T) {
	up, down := parseMigration("-- +migrate Up\nCREATE TABLE t (id TEXT);\n-- +migrate Down\nDROP TABLE t;\n")
	assert.Equal(t, "CREATE TABLE t (id TEXT);", up)
	assert.Equal(t, "DROP TABLE t;", down)

	up, down = parseMigration("CREATE TABLE t (id TEXT);")
	assert.Equal(t, "CREATE TABLE t (id TEXT);", up)
	assert.Empty(t, down)
}

func TestBackup_RunsHook(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(backupDir, 0750))

	db, err := Open(filepath.Join(dir, "healsync.db"), &config.DatabaseConfig{}, backupDir)
	require.NoError(t, err)
	defer db.Close()

	var hooked string
	db.SetBackupHook(func(ctx context.Context, path string) error {
		hooked = path
		return nil
	})

	path, err := db.Backup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, path, hooked)
	assert.FileExists(t, path)
}

func TestAttemptRecovery(t *testing.T) {
	t.Run("missing database is a first run", func(t *testing.T) {
		report, err := AttemptRecovery(filepath.Join(t.TempDir(), "none.db"), "")
		require.NoError(t, err)
		assert.Equal(t, RecoverySuccess, report.Result)
	})

	t.Run("healthy database passes", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "healsync.db")
		db, err := Open(path, &config.DatabaseConfig{}, "")
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE t (id TEXT)")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		report, err := AttemptRecovery(path, "")
		require.NoError(t, err)
		assert.Equal(t, RecoverySuccess, report.Result)
	})

	t.Run("corrupt database is restored from backup", func(t *testing.T) {
		dir := t.TempDir()
		backupDir := filepath.Join(dir, "backups")
		require.NoError(t, os.MkdirAll(backupDir, 0750))

		path := filepath.Join(dir, "healsync.db")
		db, err := Open(path, &config.DatabaseConfig{}, backupDir)
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE t (id TEXT)")
		require.NoError(t, err)
		backup, err := db.Backup(context.Background())
		require.NoError(t, err)
		require.NoError(t, db.Close())

		require.NoError(t, os.WriteFile(path, []byte("definitely not a database"), 0640))
		os.Remove(path + "-wal")

		report, err := AttemptRecovery(path, backupDir)
		require.NoError(t, err)
		assert.Equal(t, RecoveryFromBackup, report.Result)
		assert.Equal(t, backup, report.BackupUsed)
	})
}
