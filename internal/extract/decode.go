package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// maxAbsValue keeps values inside the store's NUMERIC(14,2) column.
const maxAbsValue = 1e12

var ErrInvalidOutput = errors.New("extraction output invalid")

type wireRecord struct {
	Date       string  `json:"date"`
	Title      string  `json:"title"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	Primary    string  `json:"category_primary"`
	Detailed   string  `json:"category_detailed"`
	Confidence string  `json:"category_confidence_level"`
}

type wireRecords struct {
	Transactions []wireRecord `json:"transactions"`
}

// DecodeRecords sanitizes, validates and converts a service reply. Dates after
// today (relative to now) are rejected.
func DecodeRecords(content []byte, defaultCurrency string, now time.Time) ([]Record, error) {
	cleaned, _, err := SanitizeRecordsJSON(content, defaultCurrency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := ValidateRecordsJSON(cleaned); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	var w wireRecords
	if err := json.Unmarshal(cleaned, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	out := make([]Record, 0, len(w.Transactions))
	for i, r := range w.Transactions {
		day, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %d: date %q: %v", ErrInvalidOutput, i, r.Date, err)
		}
		if day.After(today) {
			return nil, fmt.Errorf("%w: transaction %d: date %s is in the future", ErrInvalidOutput, i, r.Date)
		}
		if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) || math.Abs(r.Amount) >= maxAbsValue {
			return nil, fmt.Errorf("%w: transaction %d: amount %v is not a finite decimal", ErrInvalidOutput, i, r.Amount)
		}
		out = append(out, Record{
			OccurredAt: day,
			Label:      r.Title,
			Value:      math.Round(r.Amount*100) / 100,
			Unit:       r.Currency,
			Primary:    r.Primary,
			Detailed:   r.Detailed,
			Confidence: r.Confidence,
		})
	}
	return out, nil
}
