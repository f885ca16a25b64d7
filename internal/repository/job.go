package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/parivyaya/constants"
	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
)

// JobFilter narrows List. A nil Status lists every status.
type JobFilter struct {
	Status *constants.JobStatus
	Limit  int
	Offset int
}

type JobRepository interface {
	Create(ctx context.Context, job *entity.Job) error
	Get(ctx context.Context, id string) (*entity.Job, error)
	List(ctx context.Context, filter JobFilter) ([]*entity.Job, error)
	MarkProcessing(ctx context.Context, id string, at time.Time) error
	Complete(ctx context.Context, id string, records []entity.Record, at time.Time) (int, error)
	Fail(ctx context.Context, id string, message string, at time.Time) error
	Delete(ctx context.Context, id string) (int, error)
	CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error)
}

type jobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewJobRepository(db *DB, log *slog.Logger) JobRepository {
	return &jobRepo{db: db, log: log}
}

var jobColumns = []string{
	"id", "source_name", "status", "created_at", "started_at",
	"completed_at", "error_message", "record_count",
}

func (r *jobRepo) Create(ctx context.Context, job *entity.Job) error {
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	q, args := entsql.Dialect(r.db.dialect).
		Insert(jobsTable).
		Columns("id", "source_name", "status", "created_at").
		Values(job.ID, job.SourceName, string(job.Status), job.CreatedAt.UTC()).
		Query()
	if err := r.db.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("job create failed", "job_id", job.ID, "error", err)
		return fmt.Errorf("%w: insert job: %v", common.ErrDatabase, err)
	}
	r.log.Info("job created", "job_id", job.ID, "source_name", job.SourceName, "status", job.Status)
	return nil
}

func (r *jobRepo) Get(ctx context.Context, id string) (*entity.Job, error) {
	q, args := entsql.Dialect(r.db.dialect).
		Select(jobColumns...).
		From(entsql.Table(jobsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	jobs, err := r.queryJobs(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return jobs[0], nil
}

func (r *jobRepo) List(ctx context.Context, filter JobFilter) ([]*entity.Job, error) {
	sel := entsql.Dialect(r.db.dialect).
		Select(jobColumns...).
		From(entsql.Table(jobsTable)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if filter.Status != nil {
		sel = sel.Where(entsql.EQ("status", string(*filter.Status)))
	}
	if filter.Limit > 0 {
		sel = sel.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sel = sel.Offset(filter.Offset)
	}
	q, args := sel.Query()
	return r.queryJobs(ctx, q, args)
}

// MarkProcessing moves a job to PROCESSING. Leftovers of an earlier terminal
// write are cleared so a redelivered task still satisfies the row invariants.
func (r *jobRepo) MarkProcessing(ctx context.Context, id string, at time.Time) error {
	q, args := entsql.Dialect(r.db.dialect).
		Update(jobsTable).
		Set("status", string(constants.JobStatusProcessing)).
		Set("started_at", at.UTC()).
		SetNull("completed_at").
		SetNull("error_message").
		SetNull("record_count").
		Where(entsql.EQ("id", id)).
		Query()
	if err := r.execOne(ctx, r.db.drv, id, q, args); err != nil {
		r.log.Error("job mark processing failed", "job_id", id, "error", err)
		return err
	}
	return nil
}

// Complete inserts records and flips the job to COMPLETED in one transaction.
func (r *jobRepo) Complete(ctx context.Context, id string, records []entity.Record, at time.Time) (int, error) {
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		if err := insertRecords(ctx, tx, r.db.dialect, id, records, at); err != nil {
			return err
		}
		q, args := entsql.Dialect(r.db.dialect).
			Update(jobsTable).
			Set("status", string(constants.JobStatusCompleted)).
			Set("completed_at", at.UTC()).
			Set("record_count", len(records)).
			SetNull("error_message").
			Where(entsql.EQ("id", id)).
			Query()
		return r.execOne(ctx, tx, id, q, args)
	})
	if err != nil {
		r.log.Error("job complete failed", "job_id", id, "records", len(records), "error", err)
		return 0, err
	}
	r.log.Info("job completed", "job_id", id, "record_count", len(records))
	return len(records), nil
}

// Fail sets the job to FAILED with message in one transaction.
func (r *jobRepo) Fail(ctx context.Context, id string, message string, at time.Time) error {
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		q, args := entsql.Dialect(r.db.dialect).
			Update(jobsTable).
			Set("status", string(constants.JobStatusFailed)).
			Set("completed_at", at.UTC()).
			Set("error_message", message).
			SetNull("record_count").
			Where(entsql.EQ("id", id)).
			Query()
		return r.execOne(ctx, tx, id, q, args)
	})
	if err != nil {
		r.log.Error("job fail write failed", "job_id", id, "error", err)
		return err
	}
	r.log.Warn("job failed", "job_id", id, "error_message", message)
	return nil
}

// Delete removes a job and its records together, returning how many records went with it.
func (r *jobRepo) Delete(ctx context.Context, id string) (int, error) {
	var deleted int64
	err := r.db.withTx(ctx, func(tx dialect.Tx) error {
		q, args := entsql.Dialect(r.db.dialect).
			Delete(recordsTable).
			Where(entsql.EQ("job_id", id)).
			Query()
		var res sql.Result
		if err := tx.Exec(ctx, q, args, &res); err != nil {
			return fmt.Errorf("%w: delete records: %v", common.ErrDatabase, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("%w: delete records: %v", common.ErrDatabase, err)
		}
		deleted = n

		q, args = entsql.Dialect(r.db.dialect).
			Delete(jobsTable).
			Where(entsql.EQ("id", id)).
			Query()
		return r.execOne(ctx, tx, id, q, args)
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("job deleted", "job_id", id, "records_deleted", deleted)
	return int(deleted), nil
}

func (r *jobRepo) CountByStatus(ctx context.Context) (map[constants.JobStatus]int, error) {
	q, args := entsql.Dialect(r.db.dialect).
		Select("status", entsql.Count("*")).
		From(entsql.Table(jobsTable)).
		GroupBy("status").
		Query()
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		return nil, fmt.Errorf("%w: count jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	out := make(map[constants.JobStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("%w: scan job count: %v", common.ErrDatabase, err)
		}
		out[constants.JobStatus(status)] = n
	}
	return out, rows.Err()
}

// execOne runs an UPDATE/DELETE that must touch exactly the row for id.
func (r *jobRepo) execOne(ctx context.Context, ex dialect.ExecQuerier, id, q string, args []any) error {
	var res sql.Result
	if err := ex.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *jobRepo) queryJobs(ctx context.Context, q string, args []any) ([]*entity.Job, error) {
	rows := &entsql.Rows{}
	if err := r.db.drv.Query(ctx, q, args, rows); err != nil {
		r.log.Error("job query failed", "error", err)
		return nil, fmt.Errorf("%w: query jobs: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var jobs []*entity.Job
	for rows.Next() {
		var (
			j           entity.Job
			status      string
			startedAt   sql.NullTime
			completedAt sql.NullTime
			errMsg      sql.NullString
			recordCount sql.NullInt64
		)
		if err := rows.Scan(&j.ID, &j.SourceName, &status, &j.CreatedAt, &startedAt, &completedAt, &errMsg, &recordCount); err != nil {
			return nil, fmt.Errorf("%w: scan job: %v", common.ErrDatabase, err)
		}
		j.Status = constants.JobStatus(status)
		j.CreatedAt = j.CreatedAt.UTC()
		if startedAt.Valid {
			t := startedAt.Time.UTC()
			j.StartedAt = &t
		}
		if completedAt.Valid {
			t := completedAt.Time.UTC()
			j.CompletedAt = &t
		}
		if errMsg.Valid {
			s := errMsg.String
			j.ErrorMessage = &s
		}
		if recordCount.Valid {
			n := int(recordCount.Int64)
			j.RecordCount = &n
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate jobs: %v", common.ErrDatabase, err)
	}
	return jobs, nil
}
