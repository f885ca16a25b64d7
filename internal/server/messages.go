package server

import "github.com/joseph-ayodele/parivyaya/internal/entity"

type SubmitRequest struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

type SubmitResponse struct {
	JobID string `json:"job_id"`
}

type GetJobRequest struct {
	JobID string `json:"job_id"`
}

type GetJobResponse struct {
	Job *entity.Job `json:"job"`
}

type ListJobsRequest struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type ListJobsResponse struct {
	Jobs []*entity.Job `json:"jobs"`
}

type DeleteJobRequest struct {
	JobID string `json:"job_id"`
}

type DeleteJobResponse struct {
	JobID          string `json:"job_id"`
	RecordsDeleted int    `json:"records_deleted"`
}

type ListRecordsRequest struct {
	JobID  string `json:"job_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type ListRecordsResponse struct {
	Records []*entity.Record `json:"records"`
}

type ExportRecordsRequest struct {
	JobID string `json:"job_id"`
}

type ExportRecordsResponse struct {
	Xlsx []byte `json:"xlsx"`
}
