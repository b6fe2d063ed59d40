package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
	"sieforeagent/internal/validation"
	"sieforeagent/pkg/contracts/domain"
)

// Mirror receives a copy of every backup taken by the store.
type Mirror interface {
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// IntegrationResult reports a completed integration.
type IntegrationResult struct {
	Stats      MergeStats `json:"stats"`
	BackupFile string     `json:"backup_file,omitempty"`
	MirrorURI  string     `json:"mirror_uri,omitempty"`
}

// Store is the historical ledger: a JSON array of records on disk.
// Writes replace the file atomically and are preceded by a backup. The
// in-process lock lets the read-only API share the store with a writer.
type Store struct {
	path      string
	backupDir string
	validator *validation.RecordValidator
	mirror    Mirror
	now       func() time.Time
	logger    *slog.Logger

	mu sync.RWMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithValidator validates incoming records before they are merged.
func WithValidator(v *validation.RecordValidator) StoreOption {
	return func(s *Store) { s.validator = v }
}

// WithMirror copies every backup to m.
func WithMirror(m Mirror) StoreOption {
	return func(s *Store) { s.mirror = m }
}

// WithClock overrides the clock used to name backups.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore opens the store at path. Backups are written to backupDir.
func NewStore(path, backupDir string, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:      path,
		backupDir: backupDir,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "ledger")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// Load returns every stored record. A missing store file is an empty store.
func (s *Store) Load(ctx context.Context) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load()
}

// Periods returns the stored periods in ascending order.
func (s *Store) Periods(ctx context.Context) ([]domain.Period, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Periods(records), nil
}

// RecordsFor returns the stored records of period.
func (s *Store) RecordsFor(ctx context.Context, period domain.Period) ([]domain.Record, error) {
	records, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(records, period), nil
}

// Integrate merges records into the store, replacing their period. The
// current file is backed up first. On any failure the store file is left
// as it was.
func (s *Store) Integrate(ctx context.Context, records []domain.Record) (*IntegrationResult, error) {
	period, err := SinglePeriod(records)
	if err != nil {
		return nil, withStage(err, domain.Period{}, s.path)
	}
	if s.validator != nil {
		if err := s.validator.Records(records); err != nil {
			return nil, withStage(err, period, s.path)
		}
	}
	if dups := DuplicateKeys(records); len(dups) > 0 {
		return nil, withStage(apperrors.NewAppValidationError(
			fmt.Sprintf("%d duplicate records, first %s/%s/%s", len(dups), dups[0].Entity, dups[0].Subfund, dups[0].Concept), nil),
			period, s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return nil, withStage(err, period, s.path)
	}
	store, err := decode(raw)
	if err != nil {
		return nil, withStage(err, period, s.path)
	}

	result := &IntegrationResult{}
	if raw != nil {
		result.BackupFile, result.MirrorURI, err = s.backup(ctx, raw, config.BackupFileName(s.now()))
		if err != nil {
			return nil, withStage(err, period, s.path)
		}
	}

	merged, stats, err := Merge(store, records)
	if err != nil {
		return nil, withStage(err, period, s.path)
	}
	if err := s.write(merged); err != nil {
		return nil, withStage(err, period, s.path)
	}
	result.Stats = stats

	s.logger.InfoContext(ctx, "records integrated",
		slog.String("period", period.String()),
		slog.Int("kept", stats.Kept),
		slog.Int("replaced", stats.Replaced),
		slog.Int("added", stats.Added),
		slog.Int("total", stats.Total),
		slog.String("backup", result.BackupFile))
	return result, nil
}

// Rewrite applies fn to the whole store and writes the result, after a
// backup named with prefix. fn must not retain the slice.
func (s *Store) Rewrite(ctx context.Context, prefix string, fn func([]domain.Record) ([]domain.Record, error)) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.readRaw()
	if err != nil {
		return "", err
	}
	if raw == nil {
		return "", apperrors.NewNotFoundError("store " + s.path)
	}
	records, err := decode(raw)
	if err != nil {
		return "", err
	}

	name := prefix + s.now().Format("20060102_150405") + ".json"
	backup, _, err := s.backup(ctx, raw, name)
	if err != nil {
		return "", err
	}

	out, err := fn(records)
	if err != nil {
		return backup, err
	}
	return backup, s.write(out)
}

func (s *Store) load() ([]domain.Record, error) {
	raw, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

// readRaw returns nil data for a missing store.
func (s *Store) readRaw() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read store", err).WithContext("file", s.path)
	}
	return data, nil
}

func decode(data []byte) ([]domain.Record, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []domain.Record{}, nil
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewStorageError("store is not a JSON record array", err)
	}
	return records, nil
}

// ReadRecords loads a JSON record array such as an extract or enriched file.
func ReadRecords(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError("records file "+filepath.Base(path)).WithContext("file", path)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read records", err).WithContext("file", path)
	}
	records, err := decode(data)
	if err != nil {
		var appErr *apperrors.AppError
		if apperrors.As(err, &appErr) {
			appErr.WithContext("file", path)
		}
		return nil, err
	}
	return records, nil
}

// WriteRecords writes records to path in the store format, atomically.
func WriteRecords(path string, records []domain.Record) error {
	data, err := Encode(records)
	if err != nil {
		return apperrors.NewStorageError("failed to encode records", err)
	}
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write records", err).WithContext("file", path)
	}
	return nil
}

// Encode renders records the way the store file is written.
func Encode(records []domain.Record) ([]byte, error) {
	if records == nil {
		records = []domain.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) write(records []domain.Record) error {
	return WriteRecords(s.path, records)
}

func (s *Store) backup(ctx context.Context, data []byte, name string) (string, string, error) {
	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return "", "", apperrors.NewStorageError("failed to create backup directory", err).
			WithContext("directory", s.backupDir)
	}
	path := filepath.Join(s.backupDir, name)
	if err := WriteFileAtomic(path, data, 0644); err != nil {
		return "", "", apperrors.NewStorageError("failed to write backup", err).WithContext("file", path)
	}
	s.logger.InfoContext(ctx, "store backed up",
		slog.String("backup", path),
		slog.Int("bytes", len(data)))

	if s.mirror == nil {
		return path, "", nil
	}
	uri, err := s.mirror.Put(ctx, name, data)
	if err != nil {
		// the local copy is enough to proceed
		s.logger.WarnContext(ctx, "backup mirror failed",
			slog.String("backup", name),
			slog.String("error", err.Error()))
		return path, "", nil
	}
	return path, uri, nil
}

// WriteFileAtomic writes data to a temporary file in the target directory,
// syncs it and renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, perm); err != nil {
		return err
	}
	err = os.Rename(tmpName, path)
	return err
}

// withStage adds integration context to err.
func withStage(err error, period domain.Period, file string) error {
	var appErr *apperrors.AppError
	if !apperrors.As(err, &appErr) {
		appErr = apperrors.NewStorageError("integration failed", err)
		err = appErr
	}
	appErr.WithContext("stage", "integrate").WithContext("file", file)
	if !period.IsZero() {
		appErr.WithContext("period", period.String())
	}
	return err
}
