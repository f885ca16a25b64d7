package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/joseph-ayodele/parivyaya/constants"
	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
	"github.com/joseph-ayodele/parivyaya/internal/repository/repotest"
)

func newStores(t *testing.T) (repository.JobRepository, repository.RecordRepository) {
	t.Helper()
	db := repotest.Open(t)
	log := repotest.Logger()
	return repository.NewJobRepository(db, log), repository.NewRecordRepository(db, log)
}

func sampleRecords(n int) []entity.Record {
	out := make([]entity.Record, n)
	for i := range out {
		out[i] = entity.Record{
			OccurredAt:             time.Date(2025, 3, i+1, 0, 0, 0, 0, time.UTC),
			Label:                  fmt.Sprintf("item %d", i),
			Value:                  float64(i) + 0.5,
			Unit:                   "CAD",
			ClassificationPrimary:  string(constants.PrimaryEssential),
			ClassificationDetailed: string(constants.Groceries),
			ConfidenceLevel:        string(constants.ConfidenceHigh),
		}
	}
	return out
}

func TestCreateAndGet(t *testing.T) {
	jobs, _ := newStores(t)
	ctx := context.Background()

	if err := jobs.Create(ctx, &entity.Job{ID: "J1", SourceName: "statement.pdf"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := jobs.Get(ctx, "J1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != constants.JobStatusPending {
		t.Fatalf("status = %s, want PENDING", got.Status)
	}
	if got.SourceName != "statement.pdf" {
		t.Fatalf("source_name = %q", got.SourceName)
	}
	if got.StartedAt != nil || got.CompletedAt != nil || got.ErrorMessage != nil || got.RecordCount != nil {
		t.Fatalf("pending job has lifecycle fields set: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not set")
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	jobs, _ := newStores(t)
	_, err := jobs.Get(context.Background(), "nope")
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	jobs, _ := newStores(t)
	ctx := context.Background()
	if err := jobs.Create(ctx, &entity.Job{ID: "J1", SourceName: "a.pdf"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := jobs.Create(ctx, &entity.Job{ID: "J1", SourceName: "b.pdf"}); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestLifecycleCompleted(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "J2")

	started := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	if err := jobs.MarkProcessing(ctx, "J2", started); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	j, _ := jobs.Get(ctx, "J2")
	if j.Status != constants.JobStatusProcessing || j.StartedAt == nil || j.CompletedAt != nil {
		t.Fatalf("processing job = %+v", j)
	}
	if !j.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", j.StartedAt, started)
	}

	n, err := jobs.Complete(ctx, "J2", sampleRecords(3), started.Add(time.Second))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n != 3 {
		t.Fatalf("complete returned %d", n)
	}
	j, _ = jobs.Get(ctx, "J2")
	if j.Status != constants.JobStatusCompleted || j.CompletedAt == nil || j.RecordCount == nil || *j.RecordCount != 3 {
		t.Fatalf("completed job = %+v", j)
	}
	if j.ErrorMessage != nil {
		t.Fatalf("completed job carries error %q", *j.ErrorMessage)
	}

	count, err := records.CountByJob(ctx, "J2")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("records = %d, want 3", count)
	}
	got, err := records.List(ctx, repository.RecordFilter{JobID: "J2"})
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	for _, r := range got {
		if r.JobID != "J2" {
			t.Fatalf("record tagged with %q", r.JobID)
		}
		if r.OccurredAt.Year() != 2025 || r.OccurredAt.Month() != time.March {
			t.Fatalf("occurred_at = %v", r.OccurredAt)
		}
	}
}

func TestCompleteMissingJobLeavesNoRecords(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()

	if _, err := jobs.Complete(ctx, "ghost", sampleRecords(2), time.Now()); err == nil {
		t.Fatal("expected error completing a missing job")
	}
	n, err := records.CountByJob(ctx, "ghost")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("rolled back transaction left %d records", n)
	}
}

func TestCompleteLargeBatch(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "big")

	recs := make([]entity.Record, 0, 1203)
	for len(recs) < 1203 {
		recs = append(recs, sampleRecords(1)...)
	}
	if _, err := jobs.Complete(ctx, "big", recs, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}
	n, _ := records.CountByJob(ctx, "big")
	if n != 1203 {
		t.Fatalf("records = %d, want 1203", n)
	}
}

func TestLifecycleFailed(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "J3")

	now := time.Now()
	if err := jobs.MarkProcessing(ctx, "J3", now); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := jobs.Fail(ctx, "J3", "timeout", now); err != nil {
		t.Fatalf("fail: %v", err)
	}
	j, _ := jobs.Get(ctx, "J3")
	if j.Status != constants.JobStatusFailed || j.ErrorMessage == nil || *j.ErrorMessage != "timeout" {
		t.Fatalf("failed job = %+v", j)
	}
	if j.CompletedAt == nil || j.RecordCount != nil {
		t.Fatalf("failed job timestamps = %+v", j)
	}
	if n, _ := records.CountByJob(ctx, "J3"); n != 0 {
		t.Fatalf("failed job has %d records", n)
	}
}

func TestMarkProcessingClearsTerminalFields(t *testing.T) {
	jobs, _ := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "J4")

	now := time.Now()
	_ = jobs.MarkProcessing(ctx, "J4", now)
	if err := jobs.Fail(ctx, "J4", "boom", now); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := jobs.MarkProcessing(ctx, "J4", now.Add(time.Minute)); err != nil {
		t.Fatalf("mark processing again: %v", err)
	}
	j, _ := jobs.Get(ctx, "J4")
	if j.Status != constants.JobStatusProcessing || j.CompletedAt != nil || j.ErrorMessage != nil {
		t.Fatalf("reprocessed job = %+v", j)
	}
}

func TestMarkProcessingMissing(t *testing.T) {
	jobs, _ := newStores(t)
	err := jobs.MarkProcessing(context.Background(), "ghost", time.Now())
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "J5")
	mustCreate(t, jobs, "J6")
	if _, err := jobs.Complete(ctx, "J5", sampleRecords(4), time.Now()); err != nil {
		t.Fatalf("complete J5: %v", err)
	}
	if _, err := jobs.Complete(ctx, "J6", sampleRecords(1), time.Now()); err != nil {
		t.Fatalf("complete J6: %v", err)
	}

	n, err := jobs.Delete(ctx, "J5")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 4 {
		t.Fatalf("deleted %d records, want 4", n)
	}
	if _, err := jobs.Get(ctx, "J5"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("deleted job still readable: %v", err)
	}
	if c, _ := records.CountByJob(ctx, "J5"); c != 0 {
		t.Fatalf("%d orphan records", c)
	}
	if c, _ := records.CountByJob(ctx, "J6"); c != 1 {
		t.Fatalf("other job lost records: %d", c)
	}

	if _, err := jobs.Delete(ctx, "J5"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestListAndCount(t *testing.T) {
	jobs, _ := newStores(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := jobs.Create(ctx, &entity.Job{
			ID:         fmt.Sprintf("J%d", i),
			SourceName: "doc.pdf",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	_ = jobs.MarkProcessing(ctx, "J1", base)
	_ = jobs.Fail(ctx, "J1", "bad", base)

	all, err := jobs.List(ctx, repository.JobFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 || all[0].ID != "J4" || all[4].ID != "J0" {
		t.Fatalf("list order = %v", ids(all))
	}

	failed := constants.JobStatusFailed
	only, err := jobs.List(ctx, repository.JobFilter{Status: &failed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(only) != 1 || only[0].ID != "J1" {
		t.Fatalf("failed filter = %v", ids(only))
	}

	page, _ := jobs.List(ctx, repository.JobFilter{Limit: 2, Offset: 1})
	if len(page) != 2 || page[0].ID != "J3" {
		t.Fatalf("page = %v", ids(page))
	}

	counts, err := jobs.CountByStatus(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[constants.JobStatusPending] != 4 || counts[constants.JobStatusFailed] != 1 {
		t.Fatalf("counts = %v", counts)
	}
}

func TestRecordListLimits(t *testing.T) {
	jobs, records := newStores(t)
	ctx := context.Background()
	mustCreate(t, jobs, "A")
	mustCreate(t, jobs, "B")
	_, _ = jobs.Complete(ctx, "A", sampleRecords(3), time.Now())
	_, _ = jobs.Complete(ctx, "B", sampleRecords(2), time.Now())

	all, err := records.List(ctx, repository.RecordFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("all records = %d", len(all))
	}
	two, _ := records.List(ctx, repository.RecordFilter{JobID: "A", Limit: 2})
	if len(two) != 2 {
		t.Fatalf("limited records = %d", len(two))
	}
	for _, r := range two {
		if r.JobID != "A" {
			t.Fatalf("filter leaked job %q", r.JobID)
		}
	}
}

func mustCreate(t *testing.T, jobs repository.JobRepository, id string) {
	t.Helper()
	if err := jobs.Create(context.Background(), &entity.Job{ID: id, SourceName: id + ".pdf"}); err != nil {
		t.Fatalf("create %s: %v", id, err)
	}
}

func ids(jobs []*entity.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
