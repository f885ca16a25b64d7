package repository

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
)

const (
	jobsTable    = "jobs"
	recordsTable = "records"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            VARCHAR(64)  PRIMARY KEY,
		source_name   VARCHAR(255) NOT NULL,
		status        VARCHAR(16)  NOT NULL DEFAULT 'PENDING',
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
		started_at    TIMESTAMPTZ  NULL,
		completed_at  TIMESTAMPTZ  NULL,
		error_message TEXT         NULL,
		record_count  INTEGER      NULL
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_status_created_at ON jobs (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS records (
		id                      BIGSERIAL     PRIMARY KEY,
		job_id                  VARCHAR(64)   NOT NULL REFERENCES jobs (id) ON DELETE CASCADE,
		occurred_at             DATE          NOT NULL,
		label                   VARCHAR(500)  NOT NULL,
		value                   NUMERIC(14,2) NOT NULL,
		unit                    VARCHAR(10)   NOT NULL,
		classification_primary  VARCHAR(50)   NOT NULL,
		classification_detailed VARCHAR(100)  NOT NULL,
		confidence_level        VARCHAR(20)   NOT NULL,
		created_at              TIMESTAMPTZ   NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS records_job_id ON records (job_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT     PRIMARY KEY,
		source_name   TEXT     NOT NULL,
		status        TEXT     NOT NULL DEFAULT 'PENDING',
		created_at    DATETIME NOT NULL,
		started_at    DATETIME NULL,
		completed_at  DATETIME NULL,
		error_message TEXT     NULL,
		record_count  INTEGER  NULL
	)`,
	`CREATE INDEX IF NOT EXISTS jobs_status_created_at ON jobs (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS records (
		id                      INTEGER  PRIMARY KEY AUTOINCREMENT,
		job_id                  TEXT     NOT NULL REFERENCES jobs (id) ON DELETE CASCADE,
		occurred_at             DATE     NOT NULL,
		label                   TEXT     NOT NULL,
		value                   REAL     NOT NULL,
		unit                    TEXT     NOT NULL,
		classification_primary  TEXT     NOT NULL,
		classification_detailed TEXT     NOT NULL,
		confidence_level        TEXT     NOT NULL,
		created_at              DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS records_job_id ON records (job_id)`,
}

// Migrate creates the jobs and records tables when they do not exist yet.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	var stmts []string
	switch db.dialect {
	case dialect.Postgres:
		stmts = postgresSchema
	case dialect.SQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("migrate: unsupported dialect %q", db.dialect)
	}
	for i, stmt := range stmts {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			logger.Error("schema migration failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	logger.Info("schema up to date", "dialect", db.dialect, "statements", len(stmts))
	return nil
}
