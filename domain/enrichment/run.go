package enrichment

import (
	"peakmotif/domain/core"
)

// RunStatus of a stored analysis
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run summarizes one analysis for persistence and reporting
type Run struct {
	ID              core.RunID     `json:"id" db:"id"`
	CreatedAt       core.Timestamp `json:"created_at" db:"-"`
	ConfigHash      string         `json:"config_hash" db:"config_hash"`
	PopulationHash  string         `json:"population_hash" db:"population_hash"`
	Params          string         `json:"params" db:"params"`
	Status          RunStatus      `json:"status" db:"status"`
	TotalPeaks      int            `json:"total_peaks" db:"total_peaks"`
	AdmittedPeaks   int            `json:"admitted_peaks" db:"admitted_peaks"`
	RegressionPeaks int            `json:"regression_peaks" db:"regression_peaks"`
	MotifsScanned   int            `json:"motifs_scanned" db:"motifs_scanned"`
	MotifsTested    int            `json:"motifs_tested" db:"motifs_tested"`
	MinSetSize      int            `json:"min_set_size" db:"min_set_size"`
	MaxSetSize      int            `json:"max_set_size" db:"max_set_size"`
	Significant     int            `json:"significant" db:"significant"`
	ErrorMessage    string         `json:"error_message,omitempty" db:"error_message"`
}

// CountSignificant returns how many results pass the adjusted threshold
func CountSignificant(results []MotifResult) int {
	n := 0
	for _, r := range results {
		if r.PAdjSig == 1 {
			n++
		}
	}
	return n
}
