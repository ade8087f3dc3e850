package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	ierrors "github.com/Aman-CERP/marcindex/internal/errors"
	"github.com/Aman-CERP/marcindex/internal/fulltext"
	"github.com/Aman-CERP/marcindex/internal/marc"
	"github.com/Aman-CERP/marcindex/internal/tracker"
)

const (
	// ProjectFile is the per-directory configuration file.
	ProjectFile = ".marcindex.yaml"
	// DefaultDataDir holds the search index and tracker database.
	DefaultDataDir = ".marcindex"
)

// Output backends.
const (
	BackendBleve = "bleve"
	BackendJSONL = "jsonl"
)

// Config represents the complete marcindex configuration.
type Config struct {
	Version  int               `yaml:"version" json:"version"`
	Index    IndexConfig       `yaml:"index" json:"index"`
	Tracker  TrackerConfig     `yaml:"tracker" json:"tracker"`
	Fulltext FulltextConfig    `yaml:"fulltext" json:"fulltext"`
	Fields   map[string]string `yaml:"fields,omitempty" json:"fields,omitempty"`
	Output   OutputConfig      `yaml:"output" json:"output"`
	Logging  LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics  MetricsConfig     `yaml:"metrics" json:"metrics"`
	Watch    WatchConfig       `yaml:"watch" json:"watch"`
}

// IndexConfig controls record processing.
type IndexConfig struct {
	// Core names the tracker partition (biblio, authority, ...).
	Core string `yaml:"core" json:"core"`
	// IDSpec selects the record identifier.
	IDSpec string `yaml:"id_spec" json:"id_spec"`
	// Workers is the number of records built concurrently.
	Workers int `yaml:"workers" json:"workers"`
	// BatchSize is the number of documents written to the sink at once.
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	// DataDir holds the index, tracker database and lock file.
	// Relative paths are resolved against the project directory.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// Format forces "binary" or "xml"; empty detects by extension.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
	// CallNumberType reads sort keys from holdings fields that carry the
	// classification scheme in a subfield. Nil disables it.
	CallNumberType *CallNumberTypeConfig `yaml:"callnumber_type,omitempty" json:"callnumber_type,omitempty"`
}

// CallNumberTypeConfig maps type subfield values to LC and Dewey.
type CallNumberTypeConfig struct {
	// Spec selects the holdings fields, e.g. "952ab". Empty uses the
	// callnumber-sort field spec.
	Spec     string `yaml:"spec,omitempty" json:"spec,omitempty"`
	Subfield string `yaml:"subfield" json:"subfield"`
	LC       string `yaml:"lc,omitempty" json:"lc,omitempty"`
	Dewey    string `yaml:"dewey,omitempty" json:"dewey,omitempty"`
}

// TrackerConfig configures the first/last indexed store.
type TrackerConfig struct {
	Disabled bool `yaml:"disabled" json:"disabled"`
	// Database is a DSN: mysql://, pgsql:// or sqlite://.
	// Empty uses sqlite in the data directory.
	Database string `yaml:"database" json:"database"`
}

// FulltextConfig selects and tunes the extraction tool.
type FulltextConfig struct {
	Parser       string `yaml:"parser" json:"parser"`
	AperturePath string `yaml:"aperture_webcrawler" json:"aperture_webcrawler"`
	TikaPath     string `yaml:"tika_path" json:"tika_path"`
	FieldSpec    string `yaml:"field_spec" json:"field_spec"`
	Extension    string `yaml:"extension" json:"extension"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	Workers      int    `yaml:"workers" json:"workers"`
	MaxFailures  int    `yaml:"max_failures" json:"max_failures"`
	ResetTimeout string `yaml:"reset_timeout" json:"reset_timeout"`
}

// OutputConfig selects the document sink.
type OutputConfig struct {
	// Backend is "bleve" or "jsonl".
	Backend string `yaml:"backend" json:"backend"`
	// Path overrides the sink location. Empty uses the data directory.
	Path string `yaml:"path" json:"path"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// MetricsConfig configures the end-of-run metrics dump.
type MetricsConfig struct {
	// Textfile is written in Prometheus text format after each run.
	Textfile string `yaml:"textfile" json:"textfile"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce string   `yaml:"debounce" json:"debounce"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// NewConfig returns a configuration with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Core:      tracker.DefaultCore,
			IDSpec:    tracker.DefaultIDSpec,
			Workers:   runtime.NumCPU(),
			BatchSize: 500,
			DataDir:   DefaultDataDir,
		},
		Fulltext: FulltextConfig{
			FieldSpec:    fulltext.DefaultFieldSpec,
			Timeout:      fulltext.DefaultTimeout.String(),
			Workers:      fulltext.DefaultWorkers,
			MaxFailures:  5,
			ResetTimeout: "30s",
		},
		Output: OutputConfig{
			Backend: BackendBleve,
		},
		Logging: LoggingConfig{
			Level:     "warn",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Watch: WatchConfig{
			Debounce: "500ms",
			Patterns: []string{"*.mrc", "*.marc", "*.xml"},
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
// $XDG_CONFIG_HOME/marcindex/config.yaml or ~/.config/marcindex/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "marcindex", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "marcindex", "config.yaml")
	}
	return filepath.Join(home, ".config", "marcindex", "config.yaml")
}

// loadUserConfig returns nil, nil when there is no user config.
func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	var cfg Config
	if err := readYAML(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration for the project directory dir.
// Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/marcindex/config.yaml)
//  3. Project config (.marcindex.yaml in dir)
//  4. Environment variables (MARCINDEX_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userCfg, err := loadUserConfig()
	if err != nil {
		return nil, err
	}
	if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	path := filepath.Join(dir, ProjectFile)
	if fileExists(path) {
		var projectCfg Config
		if err := readYAML(path, &projectCfg); err != nil {
			return nil, err
		}
		cfg.mergeWith(&projectCfg)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return ierrors.New(ierrors.ErrCodeConfigNotFound, "cannot read config file", err).
			WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return ierrors.ConfigError("cannot parse config file", err).
			WithDetail("path", path).
			WithSuggestion("Check the YAML syntax, or regenerate it with 'marcindex config init --force'")
	}
	return nil
}

// mergeWith copies the non-zero values of other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Index.Core, other.Index.Core)
	mergeString(&c.Index.IDSpec, other.Index.IDSpec)
	mergeInt(&c.Index.Workers, other.Index.Workers)
	mergeInt(&c.Index.BatchSize, other.Index.BatchSize)
	mergeString(&c.Index.DataDir, other.Index.DataDir)
	mergeString(&c.Index.Format, other.Index.Format)
	if other.Index.CallNumberType != nil {
		ct := *other.Index.CallNumberType
		c.Index.CallNumberType = &ct
	}

	if other.Tracker.Disabled {
		c.Tracker.Disabled = true
	}
	mergeString(&c.Tracker.Database, other.Tracker.Database)

	mergeString(&c.Fulltext.Parser, other.Fulltext.Parser)
	mergeString(&c.Fulltext.AperturePath, other.Fulltext.AperturePath)
	mergeString(&c.Fulltext.TikaPath, other.Fulltext.TikaPath)
	mergeString(&c.Fulltext.FieldSpec, other.Fulltext.FieldSpec)
	mergeString(&c.Fulltext.Extension, other.Fulltext.Extension)
	mergeString(&c.Fulltext.Timeout, other.Fulltext.Timeout)
	mergeInt(&c.Fulltext.Workers, other.Fulltext.Workers)
	mergeInt(&c.Fulltext.MaxFailures, other.Fulltext.MaxFailures)
	mergeString(&c.Fulltext.ResetTimeout, other.Fulltext.ResetTimeout)

	// field overrides merge per key
	for field, spec := range other.Fields {
		if c.Fields == nil {
			c.Fields = make(map[string]string)
		}
		c.Fields[field] = spec
	}

	mergeString(&c.Output.Backend, other.Output.Backend)
	mergeString(&c.Output.Path, other.Output.Path)

	mergeString(&c.Logging.Level, other.Logging.Level)
	mergeString(&c.Logging.File, other.Logging.File)
	mergeInt(&c.Logging.MaxSizeMB, other.Logging.MaxSizeMB)
	mergeInt(&c.Logging.MaxFiles, other.Logging.MaxFiles)

	mergeString(&c.Metrics.Textfile, other.Metrics.Textfile)

	mergeString(&c.Watch.Debounce, other.Watch.Debounce)
	if len(other.Watch.Patterns) > 0 {
		c.Watch.Patterns = other.Watch.Patterns
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies MARCINDEX_* environment variables.
func (c *Config) applyEnvOverrides() {
	strVars := map[string]*string{
		"MARCINDEX_CORE":               &c.Index.Core,
		"MARCINDEX_DATA_DIR":           &c.Index.DataDir,
		"MARCINDEX_TRACKER_DATABASE":   &c.Tracker.Database,
		"MARCINDEX_FULLTEXT_PARSER":    &c.Fulltext.Parser,
		"MARCINDEX_APERTURE_PATH":      &c.Fulltext.AperturePath,
		"MARCINDEX_TIKA_PATH":          &c.Fulltext.TikaPath,
		"MARCINDEX_OUTPUT_BACKEND":     &c.Output.Backend,
		"MARCINDEX_OUTPUT_PATH":        &c.Output.Path,
		"MARCINDEX_LOG_LEVEL":          &c.Logging.Level,
		"MARCINDEX_METRICS_TEXTFILE":   &c.Metrics.Textfile,
		"MARCINDEX_FULLTEXT_EXTENSION": &c.Fulltext.Extension,
	}
	for name, dst := range strVars {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("MARCINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("MARCINDEX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.BatchSize = n
		}
	}
	if v := os.Getenv("MARCINDEX_TRACKER_DISABLED"); v != "" {
		c.Tracker.Disabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate checks the configuration. Errors carry ERR_102_CONFIG_INVALID
// or, for a bad tracker database, ERR_103_DSN_INVALID.
func (c *Config) Validate() error {
	if c.Index.Core == "" {
		return invalid("index.core must not be empty")
	}
	if c.Index.Workers < 1 {
		return invalid(fmt.Sprintf("index.workers must be at least 1, got %d", c.Index.Workers))
	}
	if c.Index.BatchSize < 1 {
		return invalid(fmt.Sprintf("index.batch_size must be at least 1, got %d", c.Index.BatchSize))
	}
	if len(marc.ParseSpec(c.Index.IDSpec)) == 0 {
		return invalid(fmt.Sprintf("index.id_spec %q selects no field", c.Index.IDSpec))
	}
	switch strings.ToLower(c.Index.Format) {
	case "", string(marc.FormatBinary), string(marc.FormatXML):
	default:
		return invalid(fmt.Sprintf("index.format must be 'binary', 'xml' or empty, got %s", c.Index.Format))
	}

	if ct := c.Index.CallNumberType; ct != nil {
		if len(ct.Subfield) != 1 {
			return invalid(fmt.Sprintf("index.callnumber_type.subfield must be one character, got %q", ct.Subfield))
		}
		if ct.LC == "" && ct.Dewey == "" {
			return invalid("index.callnumber_type needs an lc or dewey type code")
		}
		if ct.Spec != "" && len(marc.ParseSpec(ct.Spec)) == 0 {
			return invalid(fmt.Sprintf("index.callnumber_type.spec %q selects no field", ct.Spec))
		}
	}

	if !c.Tracker.Disabled && c.Tracker.Database != "" {
		if _, err := tracker.ParseDSN(c.Tracker.Database); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Fulltext.Parser) {
	case "", string(fulltext.BackendAperture), string(fulltext.BackendTika), string(fulltext.BackendNone):
	default:
		return invalid(fmt.Sprintf("fulltext.parser must be 'aperture', 'tika', 'none' or empty, got %s", c.Fulltext.Parser))
	}
	for name, v := range map[string]string{
		"fulltext.timeout":       c.Fulltext.Timeout,
		"fulltext.reset_timeout": c.Fulltext.ResetTimeout,
		"watch.debounce":         c.Watch.Debounce,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return invalid(fmt.Sprintf("%s is not a duration: %s", name, v))
		}
	}

	var bad []string
	for field, spec := range c.Fields {
		if len(marc.ParseSpec(spec)) == 0 {
			bad = append(bad, field)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return invalid(fmt.Sprintf("fields with an unusable spec: %s", strings.Join(bad, ", ")))
	}

	switch c.Output.Backend {
	case BackendBleve, BackendJSONL:
	default:
		return invalid(fmt.Sprintf("output.backend must be 'bleve' or 'jsonl', got %s", c.Output.Backend))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level))
	}
	return nil
}

func invalid(msg string) error {
	return ierrors.ConfigError(msg, nil)
}

// DataDir resolves the data directory against root.
func (c *Config) DataDir(root string) string {
	dir := c.Index.DataDir
	if dir == "" {
		dir = DefaultDataDir
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

// OutputPath resolves the sink location against root.
func (c *Config) OutputPath(root string) string {
	if c.Output.Path != "" {
		if filepath.IsAbs(c.Output.Path) {
			return c.Output.Path
		}
		return filepath.Join(root, c.Output.Path)
	}
	if c.Output.Backend == BackendJSONL {
		return filepath.Join(c.DataDir(root), "documents.jsonl")
	}
	return filepath.Join(c.DataDir(root), "index.bleve")
}

// TrackerDSN returns the tracker connection string, or "" when disabled.
func (c *Config) TrackerDSN(root string) string {
	if c.Tracker.Disabled {
		return ""
	}
	if c.Tracker.Database != "" {
		return c.Tracker.Database
	}
	return "sqlite://" + filepath.Join(c.DataDir(root), "tracker.db")
}

// HarvesterConfig converts the fulltext section. Durations were checked by
// Validate; unparsable values fall back to the harvester defaults.
func (c *Config) HarvesterConfig() fulltext.Config {
	timeout, _ := time.ParseDuration(c.Fulltext.Timeout)
	reset, _ := time.ParseDuration(c.Fulltext.ResetTimeout)
	return fulltext.Config{
		Settings: fulltext.Settings{
			Parser:       c.Fulltext.Parser,
			AperturePath: c.Fulltext.AperturePath,
			TikaPath:     c.Fulltext.TikaPath,
		},
		FieldSpec:    c.Fulltext.FieldSpec,
		Extension:    c.Fulltext.Extension,
		Timeout:      timeout,
		Workers:      c.Fulltext.Workers,
		MaxFailures:  c.Fulltext.MaxFailures,
		ResetTimeout: reset,
	}
}

// WatchDebounce returns the parsed debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
