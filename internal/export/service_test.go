package export

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
	"github.com/joseph-ayodele/parivyaya/internal/repository/repotest"
)

func TestExportJobXLSX(t *testing.T) {
	db := repotest.Open(t)
	log := repotest.Logger()
	jobs := repository.NewJobRepository(db, log)
	records := repository.NewRecordRepository(db, log)
	ctx := context.Background()

	if err := jobs.Create(ctx, &entity.Job{ID: "J1", SourceName: "march.pdf"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	recs := []entity.Record{
		{OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Label: "Rent", Value: 1800, Unit: "CAD", ClassificationPrimary: "Essential", ClassificationDetailed: "Rent", ConfidenceLevel: "VERY_HIGH"},
		{OccurredAt: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), Label: "Sushi", Value: 42.5, Unit: "CAD", ClassificationPrimary: "Luxury", ClassificationDetailed: "Dine out", ConfidenceLevel: "HIGH"},
	}
	if _, err := jobs.Complete(ctx, "J1", recs, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	data, err := NewService(jobs, records, log).ExportJobXLSX(ctx, "J1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Date" || rows[1][1] != "Rent" || rows[2][1] != "Sushi" || rows[2][5] != "Dine out" {
		t.Fatalf("rows = %v", rows)
	}
	if rows[1][0] != "2025-03-01" {
		t.Fatalf("date cell = %q", rows[1][0])
	}
}

func TestExportMissingJob(t *testing.T) {
	db := repotest.Open(t)
	log := repotest.Logger()
	svc := NewService(repository.NewJobRepository(db, log), repository.NewRecordRepository(db, log), log)
	if _, err := svc.ExportJobXLSX(context.Background(), "nope"); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
