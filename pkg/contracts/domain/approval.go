package domain

import "time"

// ApprovalStatus is the lifecycle of a review submission: pending -> approved.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
)

// Approval is the small persisted document gating integration.
type Approval struct {
	ID               string         `json:"id"`
	Status           ApprovalStatus `json:"status" validate:"required,oneof=pending approved"`
	CreatedAt        time.Time      `json:"created_at"`
	PeriodYear       string         `json:"period_year" validate:"required,period_year"`
	PeriodMonth      string         `json:"period_month" validate:"required,period_month"`
	TotalRecords     int            `json:"total_records"`
	EnrichedFile     string         `json:"enriched_file" validate:"required"`
	ApprovedAt       *time.Time     `json:"approved_at,omitempty"`
	BackupFile       string         `json:"backup_file,omitempty"`
	NewRecordsAdded  int            `json:"new_records_added,omitempty"`
	TotalRecordsInDB int            `json:"total_records_in_db,omitempty"`
}

// Period returns the period awaiting approval.
func (a Approval) Period() Period {
	return Period{Year: a.PeriodYear, Month: a.PeriodMonth}
}

// ReviewSummary accompanies a submission so a reviewer can sanity-check it.
type ReviewSummary struct {
	Period         Period    `json:"period"`
	TotalRecords   int       `json:"total_records"`
	TotalNative    float64   `json:"total_native"`
	TotalConverted float64   `json:"total_converted"`
	ConversionRate float64   `json:"conversion_rate"`
	NonZeroRecords int       `json:"nonzero_records"`
	Entities       []string  `json:"entities"`
	Subfunds       []string  `json:"subfunds"`
	Concepts       []string  `json:"concepts"`
	UnitScales     []string  `json:"unit_scales"`
	Sample         []Record  `json:"sample"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// RunMetadata records the period the latest run targets.
type RunMetadata struct {
	Year       string    `json:"year"`
	Month      string    `json:"month"`
	DetectedAt time.Time `json:"detected_at,omitempty"`
}

// Period returns the period targeted by the run.
func (m RunMetadata) Period() Period {
	return Period{Year: m.Year, Month: m.Month}
}
