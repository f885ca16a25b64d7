package entity

import (
	"time"

	"github.com/joseph-ayodele/parivyaya/constants"
)

// Job is the read-model of one submitted extraction request.
type Job struct {
	ID           string              `json:"id"`
	SourceName   string              `json:"source_name"`
	Status       constants.JobStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	RecordCount  *int                `json:"record_count,omitempty"`
}
