package entity

import "time"

// Record is one structured line item extracted from a job's document.
type Record struct {
	ID                     int64     `json:"id"`
	JobID                  string    `json:"job_id"`
	OccurredAt             time.Time `json:"occurred_at"`
	Label                  string    `json:"label"`
	Value                  float64   `json:"value"`
	Unit                   string    `json:"unit"`
	ClassificationPrimary  string    `json:"classification_primary"`
	ClassificationDetailed string    `json:"classification_detailed"`
	ConfidenceLevel        string    `json:"confidence_level"`
	CreatedAt              time.Time `json:"created_at"`
}
