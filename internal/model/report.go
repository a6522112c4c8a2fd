package model

import "time"

// Summary is the aggregated view of one unit's findings.
type Summary struct {
	Unit       string           `json:"unit"`
	Findings   []Finding        `json:"findings"`
	Counts     map[Category]int `json:"counts"`
	BySeverity map[Severity]int `json:"by_severity"`
	// Total counts every finding except the internal category.
	Total int `json:"total"`
	// Duplicates is the number of findings dropped by deduplication.
	Duplicates int `json:"duplicates,omitempty"`
}

// Count returns the observed count for an oracle key ("total" or a category).
func (s Summary) Count(key string) (int, error) {
	if key == TotalKey {
		return s.Total, nil
	}

	c, err := ParseCategory(key)
	if err != nil {
		return 0, err
	}

	return s.Counts[c], nil
}

// UnitResult holds everything produced for one source unit.
type UnitResult struct {
	Unit     string    `json:"unit"`
	Path     Path      `json:"path,omitempty"`
	Dialect  Dialect   `json:"dialect"`
	Hash     string    `json:"hash,omitempty"`
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
	Verdict  *Verdict  `json:"verdict,omitempty"`
}

// Failed reports whether the unit carries a failing verdict.
func (r UnitResult) Failed() bool {
	return r.Verdict != nil && !r.Verdict.Pass
}

// RunMode records which workflow produced a report.
type RunMode string

const (
	// RunScan reports findings only.
	RunScan RunMode = "scan"
	// RunCheck reports findings plus oracle verdicts.
	RunCheck RunMode = "check"
)

// RunReport is the persisted outcome of one run.
type RunReport struct {
	ID        string       `json:"id"`
	StartedAt time.Time    `json:"started_at"`
	Mode      RunMode      `json:"mode"`
	Compare   CompareMode  `json:"compare,omitempty"`
	Units     []UnitResult `json:"units"`
	Failed    int          `json:"failed"`
}

// Findings flattens the findings of every unit in report order.
func (r RunReport) Findings() []Finding {
	var out []Finding
	for _, u := range r.Units {
		out = append(out, u.Summary.Findings...)
	}

	return out
}
