package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sieforeagent/pkg/contracts/domain"
)

// Paths contains all the resolved application paths.
// This is the single source of truth for file locations; components receive
// the path they need from here rather than building their own.
type Paths struct {
	Root         string
	DownloadsDir string
	BackupsDir   string
	ReportsDir   string
	LogsDir      string

	StoreFile    string
	MetadataFile string
	ExtractFile  string
	EnrichedFile string
	ApprovalFile string
	ReviewFile   string
	ReportFile   string
	MetricsFile  string
}

// ResolvePaths resolves the configured paths. Relative entries are joined to Root;
// an empty Root resolves to the directory holding the executable.
func (c *Config) ResolvePaths() (*Paths, error) {
	root := c.Paths.Root
	if root == "" {
		exeDir, err := executableDir()
		if err != nil {
			return nil, err
		}
		root = exeDir
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root %q: %w", c.Paths.Root, err)
	}

	join := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(root, p)
	}

	reports := join(c.Paths.ReportsDir)
	inReports := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(reports, p)
	}

	return &Paths{
		Root:         root,
		DownloadsDir: join(c.Paths.DownloadsDir),
		BackupsDir:   join(c.Paths.BackupsDir),
		ReportsDir:   reports,
		LogsDir:      join(c.Paths.LogsDir),

		StoreFile:    join(c.Paths.StoreFile),
		MetadataFile: join(c.Paths.MetadataFile),
		ExtractFile:  join(c.Paths.ExtractFile),
		EnrichedFile: join(c.Paths.EnrichedFile),
		ApprovalFile: join(c.Paths.ApprovalFile),
		ReviewFile:   join(c.Paths.ReviewFile),
		ReportFile:   inReports(c.Paths.ReportFile),
		MetricsFile:  inReports(c.Paths.MetricsFile),
	}, nil
}

// executableDir returns the directory containing the running binary with
// symlinks resolved.
func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %v", err)
	}

	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", fmt.Errorf("failed to resolve executable symlinks: %v", err)
	}

	return filepath.Dir(exe), nil
}

// EnsureDirectories creates every directory the pipeline writes into.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.DownloadsDir,
		p.BackupsDir,
		p.ReportsDir,
		p.LogsDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	return nil
}

// GetLogPath returns the full path for a log file
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetDownloadPath returns the full path for a downloaded export
func (p *Paths) GetDownloadPath(filename string) string {
	return filepath.Join(p.DownloadsDir, filename)
}

// GetReportPath returns the full path for a report file
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetPeriodReportPath returns a per-period report file such as
// reports/2024-10/consistency_report.json.
func (p *Paths) GetPeriodReportPath(period domain.Period, filename string) string {
	return filepath.Join(p.ReportsDir, period.String(), filename)
}

// BackupFileName returns the timestamped backup name for t.
func BackupFileName(t time.Time) string {
	return BackupFilePrefix + t.Format("20060102_150405") + ".json"
}

// IsExportFile reports whether name is a spreadsheet export the extractor
// should read. Office lock files (~$...) are skipped.
func IsExportFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".xlsx") && !strings.HasPrefix(base, "~$")
}

// LogPathResolution logs every resolved path for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution",
		slog.String("root", p.Root),
		slog.String("downloads_dir", p.DownloadsDir),
		slog.String("backups_dir", p.BackupsDir),
		slog.String("reports_dir", p.ReportsDir),
		slog.String("logs_dir", p.LogsDir),
		slog.String("store_file", p.StoreFile),
		slog.String("approval_file", p.ApprovalFile))
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
