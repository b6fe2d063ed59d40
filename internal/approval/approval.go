package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/fx"
	"sieforeagent/internal/ledger"
	"sieforeagent/internal/validation"
	"sieforeagent/pkg/contracts/domain"
)

// sampleSize is the number of records quoted in a review summary.
const sampleSize = 10

// Manager owns the approval document that gates integration. The document
// moves from pending to approved exactly once per submission.
type Manager struct {
	path       string
	reviewPath string
	validator  *validation.RecordValidator
	now        func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithValidator validates documents before they are written.
func WithValidator(v *validation.RecordValidator) Option {
	return func(m *Manager) { m.validator = v }
}

// WithClock overrides the clock stamped on documents.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager for the approval document at path. The
// review summary of each submission is written to reviewPath.
func NewManager(path, reviewPath string, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		path:       path,
		reviewPath: reviewPath,
		now:        time.Now,
		newID:      uuid.NewString,
		logger:     logger.With(slog.String("component", "approval")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit records that enrichedFile holds records awaiting review. Any
// previous document is replaced by a new pending one.
func (m *Manager) Submit(ctx context.Context, records []domain.Record, enrichedFile string) (*domain.Approval, *domain.ReviewSummary, error) {
	period, err := ledger.SinglePeriod(records)
	if err != nil {
		return nil, nil, err
	}

	summary := Summarize(records)
	summary.GeneratedAt = m.now().UTC()
	if m.reviewPath != "" {
		if err := writeJSON(m.reviewPath, summary); err != nil {
			return nil, nil, err
		}
	}

	a := &domain.Approval{
		ID:           m.newID(),
		Status:       domain.ApprovalStatusPending,
		CreatedAt:    m.now().UTC(),
		PeriodYear:   period.Year,
		PeriodMonth:  period.Month,
		TotalRecords: len(records),
		EnrichedFile: enrichedFile,
	}
	if err := m.save(a); err != nil {
		return nil, nil, err
	}

	m.logger.InfoContext(ctx, "submitted for approval",
		slog.String("id", a.ID),
		slog.String("period", period.String()),
		slog.Int("records", a.TotalRecords),
		slog.String("approval_file", m.path))
	return a, &summary, nil
}

// Load reads the approval document.
func (m *Manager) Load() (*domain.Approval, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewPreconditionError("no approval document", apperrors.ErrApprovalMissing).
			WithContext("file", m.path)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read approval document", err).WithContext("file", m.path)
	}
	var a domain.Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, apperrors.NewStorageError("approval document is not valid JSON", err).WithContext("file", m.path)
	}
	return &a, nil
}

// RequirePending returns the document if it is pending.
func (m *Manager) RequirePending(ctx context.Context) (*domain.Approval, error) {
	return m.require(domain.ApprovalStatusPending, apperrors.ErrApprovalNotPending)
}

// RequireApproved returns the document if it is approved.
func (m *Manager) RequireApproved(ctx context.Context) (*domain.Approval, error) {
	return m.require(domain.ApprovalStatusApproved, apperrors.ErrApprovalNotApproved)
}

func (m *Manager) require(status domain.ApprovalStatus, kind error) (*domain.Approval, error) {
	a, err := m.Load()
	if err != nil {
		return nil, withStage(err, nil)
	}
	if a.Status != status {
		return nil, withStage(apperrors.NewPreconditionError(
			fmt.Sprintf("approval status is %q, not %q", a.Status, status), kind).
			WithContext("file", m.path), a)
	}
	return a, nil
}

// MarkApproved moves the pending document to approved and records the
// integration outcome.
func (m *Manager) MarkApproved(ctx context.Context, backupFile string, newCount, totalCount int) (*domain.Approval, error) {
	a, err := m.RequirePending(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now().UTC()
	a.Status = domain.ApprovalStatusApproved
	a.ApprovedAt = &now
	a.BackupFile = backupFile
	a.NewRecordsAdded = newCount
	a.TotalRecordsInDB = totalCount
	if err := m.save(a); err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "approval recorded",
		slog.String("id", a.ID),
		slog.String("period", a.Period().String()),
		slog.Int("new_records", newCount),
		slog.Int("total_records", totalCount))
	return a, nil
}

func (m *Manager) save(a *domain.Approval) error {
	if m.validator != nil {
		if err := m.validator.Approval(*a); err != nil {
			return err
		}
	}
	return writeJSON(m.path, a)
}

// Summarize computes the review figures of one period's records.
func Summarize(records []domain.Record) domain.ReviewSummary {
	var s domain.ReviewSummary
	s.TotalRecords = len(records)
	if len(records) == 0 {
		return s
	}
	s.Period = records[0].Period()
	s.ConversionRate = records[0].ConversionRate

	native, converted := fx.Totals(records)
	s.TotalNative = native.InexactFloat64()
	s.TotalConverted = converted.InexactFloat64()

	entities := map[string]struct{}{}
	subfunds := map[string]struct{}{}
	concepts := map[string]struct{}{}
	units := map[string]struct{}{}
	for _, r := range records {
		entities[r.Entity] = struct{}{}
		subfunds[r.Subfund] = struct{}{}
		concepts[r.Concept] = struct{}{}
		if r.UnitScale != "" {
			units[string(r.UnitScale)] = struct{}{}
		}
		if r.ValueNative > 0 {
			s.NonZeroRecords++
		}
	}
	s.Entities = sortedKeys(entities)
	s.Subfunds = sortedKeys(subfunds)
	s.Concepts = sortedKeys(concepts)
	s.UnitScales = sortedKeys(units)

	n := sampleSize
	if n > len(records) {
		n = len(records)
	}
	s.Sample = append([]domain.Record(nil), records[:n]...)
	return s
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewStorageError("failed to encode document", err)
	}
	if err := ledger.WriteFileAtomic(path, append(data, '\n'), 0644); err != nil {
		return apperrors.NewStorageError("failed to write document", err).WithContext("file", path)
	}
	return nil
}

func withStage(err error, a *domain.Approval) error {
	var appErr *apperrors.AppError
	if apperrors.As(err, &appErr) {
		appErr.WithContext("stage", "approval")
		if a != nil {
			appErr.WithContext("period", a.Period().String())
		}
	}
	return err
}
