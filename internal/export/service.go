package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/parivyaya/internal/entity"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
)

const sheet = "Records"

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	jobs    repository.JobRepository
	records repository.RecordRepository
	logger  *slog.Logger
}

func NewService(jobs repository.JobRepository, records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{jobs: jobs, records: records, logger: logger}
}

// ExportJobXLSX returns a workbook with one row per record of the job, in extraction order.
// A job that is not COMPLETED exports an empty sheet.
func (s *Service) ExportJobXLSX(ctx context.Context, jobID string) ([]byte, error) {
	start := time.Now()

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	recs, err := s.allRecords(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Date",
		"Label",
		"Value",
		"Unit",
		"Primary Category",
		"Detailed Category",
		"Confidence",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.OccurredAt.Format(time.DateOnly))
		write(2, truncate(r.Label, 140))
		write(3, r.Value)
		write(4, r.Unit)
		write(5, r.ClassificationPrimary)
		write(6, r.ClassificationDetailed)
		write(7, r.ConfidenceLevel)
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 48) // label
	_ = f.SetColWidth(sheet, "C", "D", 12)
	_ = f.SetColWidth(sheet, "E", "F", 22) // categories
	_ = f.SetColWidth(sheet, "G", "G", 12)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"job_id", job.ID,
		"status", job.Status,
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) allRecords(ctx context.Context, jobID string) ([]*entity.Record, error) {
	var out []*entity.Record
	for {
		page, err := s.records.List(ctx, repository.RecordFilter{
			JobID:  jobID,
			Limit:  repository.MaxRecordLimit,
			Offset: len(out),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < repository.MaxRecordLimit {
			return out, nil
		}
	}
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
