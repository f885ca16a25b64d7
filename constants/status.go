package constants

// JobStatus is the canonical status for rows in jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusPending    JobStatus = "PENDING"    // created by submission, not yet picked up
	JobStatusProcessing JobStatus = "PROCESSING" // a worker started extraction
	JobStatusCompleted  JobStatus = "COMPLETED"  // terminal: records persisted
	JobStatusFailed     JobStatus = "FAILED"     // terminal: error_message set
)

var allJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusProcessing,
	JobStatusCompleted,
	JobStatusFailed,
}

// JobStatuses returns every known status in lifecycle order.
func JobStatuses() []JobStatus {
	out := make([]JobStatus, len(allJobStatuses))
	copy(out, allJobStatuses)
	return out
}

// Terminal reports whether no transition leaves s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	for _, st := range allJobStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// TaskTypeExtractRecords is the only task_type the worker executes.
const TaskTypeExtractRecords = "extract_records"
