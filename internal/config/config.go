package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "sieforeagent/internal/errors"
	"sieforeagent/pkg/contracts/domain"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "SIEFORE"

// ConfigFileEnv names the variable that points at an explicit YAML file.
const ConfigFileEnv = "SIEFORE_CONFIG_FILE"

// Config represents the complete application configuration
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Rates     RatesConfig     `yaml:"rates" envconfig:"RATES"`
	Retry     RetryConfig     `yaml:"retry" envconfig:"RETRY"`
	Backup    BackupConfig    `yaml:"backup" envconfig:"BACKUP"`
	Release   ReleaseConfig   `yaml:"release" envconfig:"RELEASE"`
	Scraper   ScraperConfig   `yaml:"scraper" envconfig:"SCRAPER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
}

// PathsConfig contains file system paths. Relative entries resolve
// against Root, and an empty Root means the executable directory.
type PathsConfig struct {
	Root         string `yaml:"root" envconfig:"ROOT"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR"`
	BackupsDir   string `yaml:"backups_dir" envconfig:"BACKUPS_DIR"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR"`
	StoreFile    string `yaml:"store_file" envconfig:"STORE_FILE"`
	MetadataFile string `yaml:"metadata_file" envconfig:"METADATA_FILE"`
	ExtractFile  string `yaml:"extract_file" envconfig:"EXTRACT_FILE"`
	EnrichedFile string `yaml:"enriched_file" envconfig:"ENRICHED_FILE"`
	ApprovalFile string `yaml:"approval_file" envconfig:"APPROVAL_FILE"`
	ReviewFile   string `yaml:"review_file" envconfig:"REVIEW_FILE"`
	ReportFile   string `yaml:"report_file" envconfig:"REPORT_FILE"`
	MetricsFile  string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Format      string `yaml:"format" envconfig:"FORMAT"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FileName    string `yaml:"file_name" envconfig:"FILE_NAME"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// PipelineConfig holds the extraction vocabulary: the entity allow-list,
// label alias tables and the fixed export layout.
type PipelineConfig struct {
	ExpectedUnit    domain.UnitScale  `yaml:"expected_unit" envconfig:"EXPECTED_UNIT"`
	Entities        []string          `yaml:"entities" envconfig:"ENTITIES"`
	Subfunds        []string          `yaml:"subfunds" envconfig:"SUBFUNDS"`
	SubfundAliases  map[string]string `yaml:"subfund_aliases" envconfig:"SUBFUND_ALIASES"`
	ConceptKeywords []string          `yaml:"concept_keywords" envconfig:"CONCEPT_KEYWORDS"`
	ConceptAliases  map[string]string `yaml:"concept_aliases" envconfig:"CONCEPT_ALIASES"`
	AllowPartial    bool              `yaml:"allow_partial" envconfig:"ALLOW_PARTIAL"`
	DriftThreshold  float64           `yaml:"drift_threshold" envconfig:"DRIFT_THRESHOLD"`
	Layout          LayoutConfig      `yaml:"layout" envconfig:"LAYOUT"`
}

// LayoutConfig locates the fixed cells of an export, 0-based.
type LayoutConfig struct {
	UnitRow         int `yaml:"unit_row" envconfig:"UNIT_ROW"`
	UnitCol         int `yaml:"unit_col" envconfig:"UNIT_COL"`
	SubfundRow      int `yaml:"subfund_row" envconfig:"SUBFUND_ROW"`
	SubfundCol      int `yaml:"subfund_col" envconfig:"SUBFUND_COL"`
	PeriodHeaderRow int `yaml:"period_header_row" envconfig:"PERIOD_HEADER_ROW"`
	FirstPeriodCol  int `yaml:"first_period_col" envconfig:"FIRST_PERIOD_COL"`
	FirstDataRow    int `yaml:"first_data_row" envconfig:"FIRST_DATA_ROW"`
	LabelCol        int `yaml:"label_col" envconfig:"LABEL_COL"`
}

// RatesConfig configures the Banxico SIE series client.
type RatesConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL"`
	Series       string        `yaml:"series" envconfig:"SERIES"`
	Token        string        `yaml:"token" envconfig:"TOKEN"`
	Timeout      time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
	RequestsPerS float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst        int           `yaml:"burst" envconfig:"BURST"`
}

// RetryConfig is the policy applied to every external call.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	BaseDelay   time.Duration `yaml:"base_delay" envconfig:"BASE_DELAY"`
}

// BackupConfig controls local store backups and the optional S3 mirror.
type BackupConfig struct {
	S3Enabled       bool   `yaml:"s3_enabled" envconfig:"S3_ENABLED"`
	S3Bucket        string `yaml:"s3_bucket" envconfig:"S3_BUCKET"`
	S3Prefix        string `yaml:"s3_prefix" envconfig:"S3_PREFIX"`
	S3Region        string `yaml:"s3_region" envconfig:"S3_REGION"`
	S3Endpoint      string `yaml:"s3_endpoint" envconfig:"S3_ENDPOINT"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	UsePathStyle    bool   `yaml:"use_path_style" envconfig:"USE_PATH_STYLE"`
}

// ReleaseConfig points at the repository that publishes the store.
type ReleaseConfig struct {
	APIURL  string        `yaml:"api_url" envconfig:"API_URL"`
	Owner   string        `yaml:"owner" envconfig:"OWNER"`
	Repo    string        `yaml:"repo" envconfig:"REPO"`
	Token   string        `yaml:"token" envconfig:"TOKEN"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// ScraperConfig configures latest-period discovery on the CONSAR site.
type ScraperConfig struct {
	URL      string        `yaml:"url" envconfig:"URL"`
	Headless bool          `yaml:"headless" envconfig:"HEADLESS"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

// TelemetryConfig toggles tracing and metrics export.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Load builds the configuration from defaults, then the YAML file named by
// SIEFORE_CONFIG_FILE (or the first well-known location found), then
// environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("file", path)
		}
	}

	// Fields without a matching variable are left untouched, so the
	// defaults and file values survive.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, apperrors.NewConfigError("config validation failed", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(ConfigFileEnv); explicit != "" {
		return explicit
	}

	locations := []string{
		"siefore.yaml",
		"configs/siefore.yaml",
		"../configs/siefore.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// validate validates the configuration
func (c *Config) validate() error {
	if !c.Pipeline.ExpectedUnit.Known() {
		return fmt.Errorf("invalid expected unit: %q", c.Pipeline.ExpectedUnit)
	}

	if len(c.Pipeline.Entities) == 0 {
		return fmt.Errorf("entity allow-list must not be empty")
	}

	if len(c.Pipeline.ConceptKeywords) == 0 {
		return fmt.Errorf("at least one concept keyword must be specified")
	}

	if c.Pipeline.DriftThreshold <= 0 {
		return fmt.Errorf("drift_threshold must be positive")
	}

	l := c.Pipeline.Layout
	for name, v := range map[string]int{
		"unit_row": l.UnitRow, "unit_col": l.UnitCol,
		"subfund_row": l.SubfundRow, "subfund_col": l.SubfundCol,
		"period_header_row": l.PeriodHeaderRow, "first_period_col": l.FirstPeriodCol,
		"first_data_row": l.FirstDataRow, "label_col": l.LabelCol,
	} {
		if v < 0 {
			return fmt.Errorf("layout %s must not be negative", name)
		}
	}
	if l.FirstDataRow <= l.PeriodHeaderRow {
		return fmt.Errorf("layout first_data_row must follow period_header_row")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1")
	}

	if c.Retry.BaseDelay < 0 {
		return fmt.Errorf("retry base_delay must not be negative")
	}

	if c.Rates.BaseURL == "" {
		return fmt.Errorf("rates base_url must be set")
	}

	if c.Backup.S3Enabled && c.Backup.S3Bucket == "" {
		return fmt.Errorf("backup s3_bucket must be set when s3 mirroring is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Always JSON, always dual output
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "console" {
		c.Logging.Output = "both"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)

	return nil
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			DownloadsDir: "downloaded_files",
			BackupsDir:   "backups",
			ReportsDir:   "reports",
			LogsDir:      "logs",
			StoreFile:    "consar_siefores_with_usd.json",
			MetadataFile: "latest_run_metadata.json",
			ExtractFile:  "consar_latest_month.json",
			EnrichedFile: "consar_latest_month_enriched.json",
			ApprovalFile: "approval_pending.json",
			ReviewFile:   "review_summary.json",
			ReportFile:   "consistency_report.json",
			MetricsFile:  "siefore_pipeline.prom",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FileName: "siefore.log",
		},
		Pipeline: PipelineConfig{
			ExpectedUnit:    domain.DefaultUnitScale,
			Entities:        append([]string(nil), DefaultEntities...),
			Subfunds:        append([]string(nil), DefaultSubfunds...),
			SubfundAliases:  copyMap(DefaultSubfundAliases),
			ConceptKeywords: append([]string(nil), DefaultConceptKeywords...),
			ConceptAliases:  copyMap(DefaultConceptAliases),
			DriftThreshold:  DefaultDriftThreshold,
			Layout:          DefaultLayout,
		},
		Rates: RatesConfig{
			BaseURL:      DefaultBanxicoURL,
			Series:       DefaultRateSeries,
			Timeout:      30 * time.Second,
			RequestsPerS: 2,
			Burst:        1,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   5 * time.Second,
		},
		Backup: BackupConfig{
			S3Prefix: "siefore/backups",
			S3Region: "us-east-1",
		},
		Release: ReleaseConfig{
			APIURL:  "https://api.github.com",
			Timeout: 30 * time.Second,
		},
		Scraper: ScraperConfig{
			URL:      DefaultConsarURL,
			Headless: true,
			Timeout:  90 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "siefore-pipeline",
			MetricsEnabled: true,
			Environment:    "production",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
	}
}

func copyMap(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
