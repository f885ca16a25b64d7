package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/parivyaya/constants"
	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/export"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
	"github.com/joseph-ayodele/parivyaya/internal/submit"
)

const (
	defaultJobLimit = 50
	maxJobLimit     = 500
)

type JobsServer struct {
	submit  *submit.Service
	jobs    repository.JobRepository
	records repository.RecordRepository
	export  *export.Service
	logger  *slog.Logger
}

var _ JobsServiceServer = (*JobsServer)(nil)

func NewJobsServer(sub *submit.Service, jobs repository.JobRepository, records repository.RecordRepository, exp *export.Service, logger *slog.Logger) *JobsServer {
	return &JobsServer{submit: sub, jobs: jobs, records: records, export: exp, logger: logger}
}

func (s *JobsServer) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	id, err := s.submit.Submit(ctx, req.Filename, req.Content)
	if err != nil {
		log.Error("submit failed", "filename", req.Filename, "error", err)
		return nil, common.ToStatus(err)
	}
	return &SubmitResponse{JobID: id}, nil
}

func (s *JobsServer) GetJob(ctx context.Context, req *GetJobRequest) (*GetJobResponse, error) {
	if strings.TrimSpace(req.JobID) == "" {
		return nil, common.InvalidArgumentError("job_id is required")
	}
	job, err := s.jobs.Get(ctx, req.JobID)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return &GetJobResponse{Job: job}, nil
}

func (s *JobsServer) ListJobs(ctx context.Context, req *ListJobsRequest) (*ListJobsResponse, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	filter := repository.JobFilter{Limit: req.Limit, Offset: req.Offset}
	if filter.Limit == 0 {
		filter.Limit = defaultJobLimit
	}
	v := common.NewValidator().
		Field("limit", filter.Limit, common.IntRange(1, maxJobLimit)).
		Field("offset", filter.Offset, common.IntRange(0, 1<<31-1))
	if err := v.Err(); err != nil {
		return nil, common.ToStatus(err)
	}
	if st := strings.TrimSpace(req.Status); st != "" {
		status := constants.JobStatus(strings.ToUpper(st))
		if !status.Valid() {
			return nil, common.InvalidArgumentErrorf("status %q is not one of %v", req.Status, constants.JobStatuses())
		}
		filter.Status = &status
	}

	jobs, err := s.jobs.List(ctx, filter)
	if err != nil {
		log.Error("list jobs failed", "error", err)
		return nil, common.ToStatus(err)
	}
	return &ListJobsResponse{Jobs: jobs}, nil
}

func (s *JobsServer) DeleteJob(ctx context.Context, req *DeleteJobRequest) (*DeleteJobResponse, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	if strings.TrimSpace(req.JobID) == "" {
		return nil, common.InvalidArgumentError("job_id is required")
	}
	n, err := s.jobs.Delete(ctx, req.JobID)
	if err != nil {
		log.Warn("delete job failed", "job_id", req.JobID, "error", err)
		return nil, common.ToStatus(err)
	}
	return &DeleteJobResponse{JobID: req.JobID, RecordsDeleted: n}, nil
}

func (s *JobsServer) ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	filter := repository.RecordFilter{JobID: strings.TrimSpace(req.JobID), Limit: req.Limit, Offset: req.Offset}
	if filter.Limit == 0 {
		filter.Limit = repository.DefaultRecordLimit
	}
	v := common.NewValidator().
		Field("limit", filter.Limit, common.IntRange(1, repository.MaxRecordLimit)).
		Field("offset", filter.Offset, common.IntRange(0, 1<<31-1))
	if err := v.Err(); err != nil {
		return nil, common.ToStatus(err)
	}
	if filter.JobID != "" {
		if _, err := s.jobs.Get(ctx, filter.JobID); err != nil {
			return nil, common.ToStatus(err)
		}
	}

	recs, err := s.records.List(ctx, filter)
	if err != nil {
		log.Error("list records failed", "job_id", filter.JobID, "error", err)
		return nil, common.ToStatus(err)
	}
	return &ListRecordsResponse{Records: recs}, nil
}

func (s *JobsServer) ExportRecords(ctx context.Context, req *ExportRecordsRequest) (*ExportRecordsResponse, error) {
	log := common.LoggerFromContext(ctx, s.logger)
	if strings.TrimSpace(req.JobID) == "" {
		return nil, common.InvalidArgumentError("job_id is required")
	}
	xlsx, err := s.export.ExportJobXLSX(ctx, req.JobID)
	if err != nil {
		log.Error("export.xlsx.failed", "job_id", req.JobID, "error", err)
		return nil, common.ToStatus(err)
	}
	return &ExportRecordsResponse{Xlsx: xlsx}, nil
}
