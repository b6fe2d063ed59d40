package domain

import "time"

// CheckStatus is the outcome of a single consistency check.
type CheckStatus string

const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusWarn CheckStatus = "warn"
	CheckStatusFail CheckStatus = "fail"
)

// severity orders statuses so the worst one can be picked.
func (s CheckStatus) severity() int {
	switch s {
	case CheckStatusFail:
		return 2
	case CheckStatusWarn:
		return 1
	}
	return 0
}

// Worse returns the more severe of the two statuses.
func (s CheckStatus) Worse(o CheckStatus) CheckStatus {
	if o.severity() > s.severity() {
		return o
	}
	return s
}

// Check names used in consistency reports.
const (
	CheckRecordCount        = "record_count"
	CheckEntityIntegrity    = "entity_integrity"
	CheckSubfundIntegrity   = "subfund_integrity"
	CheckConceptIntegrity   = "concept_integrity"
	CheckAggregateMagnitude = "aggregate_magnitude"
)

// CheckResult is one named, independently scored check.
type CheckResult struct {
	Name    string             `json:"name"`
	Status  CheckStatus        `json:"status"`
	Message string             `json:"message"`
	Values  map[string]float64 `json:"values,omitempty"`
	Missing []string           `json:"missing,omitempty"`
	Added   []string           `json:"added,omitempty"`
	Fatal   bool               `json:"fatal"`
}

// ConsistencyReport compares a freshly merged period against the prior one.
// It is advisory output and is regenerated on every run.
type ConsistencyReport struct {
	TargetPeriod Period         `json:"target_period"`
	PriorPeriod  Period         `json:"prior_period"`
	Status       CheckStatus    `json:"status"`
	Checks       []CheckResult  `json:"checks"`
	Breakdown    []EntityChange `json:"breakdown,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// EntityChange is one entity's converted total assets in both periods.
type EntityChange struct {
	Entity    string  `json:"entity"`
	Prior     float64 `json:"prior"`
	Target    float64 `json:"target"`
	ChangePct float64 `json:"change_pct"`
}

// Fatal reports whether any load-bearing check failed.
func (r *ConsistencyReport) Fatal() bool {
	for _, c := range r.Checks {
		if c.Fatal && c.Status == CheckStatusFail {
			return true
		}
	}
	return false
}

// Check returns the named check result, if present.
func (r *ConsistencyReport) Check(name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}
