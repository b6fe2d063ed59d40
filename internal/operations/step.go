package operations

import (
	"context"
	"time"

	"sieforeagent/pkg/contracts/domain"
)

// Step is one stage of a pipeline run.
type Step interface {
	// ID returns the unique identifier for this step
	ID() string

	// Name returns the human-readable name for this step
	Name() string

	// Execute runs the step against the shared run state
	Execute(ctx context.Context, state *RunState) error
}

// StepStatus represents the current status of a step
type StepStatus string

const (
	StepStatusPending   StepStatus = "pending"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// StepResult is the outcome of one executed step.
type StepResult struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// StepFunc adapts a function to the Step interface.
type StepFunc struct {
	StepID   string
	StepName string
	Fn       func(ctx context.Context, state *RunState) error
}

func (s StepFunc) ID() string   { return s.StepID }
func (s StepFunc) Name() string { return s.StepName }

func (s StepFunc) Execute(ctx context.Context, state *RunState) error {
	return s.Fn(ctx, state)
}

// RunState is shared by the steps of one run. Steps run sequentially, so
// it needs no locking.
type RunState struct {
	RunID  string
	Target domain.Period

	// Records is the working set handed from step to step.
	Records []domain.Record

	// Warnings are non-fatal findings such as unit mismatches.
	Warnings []error

	Approval    *domain.Approval
	Integration *IntegrationOutcome
	Report      *domain.ConsistencyReport

	messages map[string]string
}

// IntegrationOutcome is what the integrate step did to the store.
type IntegrationOutcome struct {
	BackupFile string `json:"backup_file,omitempty"`
	MirrorURI  string `json:"mirror_uri,omitempty"`
	Added      int    `json:"added"`
	Replaced   int    `json:"replaced"`
	Total      int    `json:"total"`
}

// NewRunState creates the state of a run targeting period.
func NewRunState(runID string, target domain.Period) *RunState {
	return &RunState{RunID: runID, Target: target, messages: map[string]string{}}
}

// Note records a one-line summary for the running step.
func (s *RunState) Note(step, message string) {
	if s.messages == nil {
		s.messages = map[string]string{}
	}
	s.messages[step] = message
}

// Warn records a non-fatal finding.
func (s *RunState) Warn(err error) {
	s.Warnings = append(s.Warnings, err)
}
