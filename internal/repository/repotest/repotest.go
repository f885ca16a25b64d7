// Package repotest opens throwaway sqlite stores for tests.
package repotest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
)

// Logger discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Open returns a migrated sqlite database under t.TempDir, closed on cleanup.
func Open(t testing.TB) *repository.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parivyaya.db")
	log := Logger()
	db, err := repository.Open(context.Background(), repository.Config{
		Driver: common.DriverSQLite,
		DSN:    repository.SQLiteDSN(path),
	}, log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close(log) })
	if err := repository.Migrate(context.Background(), db, log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
