package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
)

const (
	DefaultRecordLimit = 100
	MaxRecordLimit     = 1000

	// insertChunk keeps a batch insert under the bind parameter limits of both drivers.
	insertChunk = 500
)

// RecordFilter narrows List. An empty JobID lists records of every job.
type RecordFilter struct {
	JobID  string
	Limit  int
	Offset int
}

type RecordRepository interface {
	List(ctx context.Context, filter RecordFilter) ([]*entity.Record, error)
	CountByJob(ctx context.Context, jobID string) (int, error)
}

type recordRepo struct {
	db  *DB
	log *slog.Logger
}

func NewRecordRepository(db *DB, log *slog.Logger) RecordRepository {
	return &recordRepo{db: db, log: log}
}

var recordColumns = []string{
	"id", "job_id", "occurred_at", "label", "value", "unit",
	"classification_primary", "classification_detailed", "confidence_level", "created_at",
}

func (r *recordRepo) List(ctx context.Context, filter RecordFilter) ([]*entity.Record, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultRecordLimit
	}
	if limit > MaxRecordLimit {
		limit = MaxRecordLimit
	}
	sel := entsql.Dialect(r.db.dialect).
		Select(recordColumns...).
		From(entsql.Table(recordsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Asc("id")).
		Limit(limit)
	if filter.JobID != "" {
		sel = sel.Where(entsql.EQ("job_id", filter.JobID))
	}
	if filter.Offset > 0 {
		sel = sel.Offset(filter.Offset)
	}
	q, args := sel.Query()

	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		r.log.Error("failed to list records", "job_id", filter.JobID, "error", err)
		return nil, fmt.Errorf("%w: query records: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Record
	for rows.Next() {
		var rec entity.Record
		if err := rows.Scan(
			&rec.ID, &rec.JobID, &rec.OccurredAt, &rec.Label, &rec.Value, &rec.Unit,
			&rec.ClassificationPrimary, &rec.ClassificationDetailed, &rec.ConfidenceLevel, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan record: %v", common.ErrDatabase, err)
		}
		rec.OccurredAt = rec.OccurredAt.UTC()
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate records: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func (r *recordRepo) CountByJob(ctx context.Context, jobID string) (int, error) {
	q, args := entsql.Dialect(r.db.dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(recordsTable)).
		Where(entsql.EQ("job_id", jobID)).
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return 0, fmt.Errorf("%w: count records: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("%w: scan record count: %v", common.ErrDatabase, err)
		}
	}
	return n, rows.Err()
}

// insertRecords writes records for jobID through ex, in chunks.
func insertRecords(ctx context.Context, ex dialect.ExecQuerier, d, jobID string, records []entity.Record, at time.Time) error {
	createdAt := at.UTC()
	for start := 0; start < len(records); start += insertChunk {
		end := min(start+insertChunk, len(records))
		ins := entsql.Dialect(d).
			Insert(recordsTable).
			Columns(recordColumns[1:]...)
		for _, rec := range records[start:end] {
			ins = ins.Values(
				jobID,
				rec.OccurredAt.UTC(),
				rec.Label,
				rec.Value,
				rec.Unit,
				rec.ClassificationPrimary,
				rec.ClassificationDetailed,
				rec.ConfidenceLevel,
				createdAt,
			)
		}
		q, args := ins.Query()
		if err := ex.Exec(ctx, q, args, nil); err != nil {
			return fmt.Errorf("%w: insert records: %v", common.ErrDatabase, err)
		}
	}
	return nil
}
