package validation

import (
	"log/slog"
	"os"
	"path/filepath"

	"sieforeagent/internal/config"
	apperrors "sieforeagent/internal/errors"
)

// FileValidator checks the directories and files the commands read and write.
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateDownloads checks that dir exists and returns the number of
// spreadsheet exports in it. Office lock files are not counted.
func (v *FileValidator) ValidateDownloads(dir string) (int, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		v.logger.Error("Downloads directory does not exist", slog.String("directory", dir))
		return 0, apperrors.NewNotFoundError("downloads directory " + dir)
	}
	if err != nil {
		return 0, apperrors.NewStorageError("failed to stat downloads directory", err).
			WithContext("directory", dir)
	}
	if !info.IsDir() {
		return 0, apperrors.NewConfigError(dir+" is not a directory", nil)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to list downloads directory", err).
			WithContext("directory", dir)
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && config.IsExportFile(e.Name()) {
			count++
		}
	}
	if count == 0 {
		v.logger.Warn("No exports found", slog.String("directory", dir))
		return 0, nil
	}

	v.logger.Info("Downloads directory validated",
		slog.String("directory", dir),
		slog.Int("exports", count))
	return count, nil
}

// ValidateOutputDirectory ensures dir exists and is writable.
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("failed to create output directory", err).
			WithContext("directory", dir)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return apperrors.NewStorageError("output directory is not writable", err).
			WithContext("directory", dir)
	}
	probe.Close()
	os.Remove(probe.Name())

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path exists, is a regular file and is readable.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return apperrors.NewNotFoundError("file "+filepath.Base(path)).WithContext("file", path)
	}
	if err != nil {
		return apperrors.NewStorageError("failed to stat file", err).WithContext("file", path)
	}
	if info.IsDir() {
		return apperrors.NewStorageError(path+" is a directory, not a file", nil).WithContext("file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return apperrors.NewStorageError("file is not readable", err).WithContext("file", path)
	}
	f.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}
