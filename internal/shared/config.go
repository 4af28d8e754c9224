package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

//go:embed config.example.toml
var exampleConf []byte

// Strictness modes accepted by [SyncConfig.Mode] and [BatchConfig.Mode].
const (
	ModeSamples = "samples"
	ModeLenient = "lenient"
)

// Progress renderers accepted by [BatchConfig.Progress].
const (
	ProgressAuto  = "auto"
	ProgressBar   = "bar"
	ProgressPlain = "plain"
	ProgressNone  = "none"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Sync     SyncConfig     `toml:"sync"`
	Batch    BatchConfig    `toml:"batch"`
	Tools    ToolsConfig    `toml:"tools"`
	Detector DetectorConfig `toml:"detector"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// SyncConfig contains settings for single-file synchronization.
type SyncConfig struct {
	Take    float64 `toml:"take"`
	Mode    string  `toml:"mode"`
	Quiet   bool    `toml:"quiet"`
	Verbose bool    `toml:"verbose"`
}

// BatchConfig contains settings for directory synchronization.
type BatchConfig struct {
	Threads  int     `toml:"threads"`
	Take     float64 `toml:"take"`
	Mode     string  `toml:"mode"`
	Progress string  `toml:"progress"`
}

// ToolsConfig names the external binaries.
type ToolsConfig struct {
	FFmpeg  string `toml:"ffmpeg"`
	FFprobe string `toml:"ffprobe"`
}

// DetectorConfig tunes silence detection used for intro offsets.
type DetectorConfig struct {
	NoiseDB    float64 `toml:"noise_db"`
	MinSilence float64 `toml:"min_silence"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if err := decodeFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

func decodeFile(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	md, err := toml.Decode(string(data), config)
	if err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalidConfig, path, strings.Join(keys, ", "))
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs *multierror.Error

	if c.Sync.Take < 0 {
		errs = multierror.Append(errs, fmt.Errorf("sync.take must not be negative, got %v", c.Sync.Take))
	}
	if !validMode(c.Sync.Mode) {
		errs = multierror.Append(errs, fmt.Errorf("sync.mode must be %q or %q, got %q", ModeSamples, ModeLenient, c.Sync.Mode))
	}
	if c.Batch.Take < 0 {
		errs = multierror.Append(errs, fmt.Errorf("batch.take must not be negative, got %v", c.Batch.Take))
	}
	if c.Batch.Threads < 0 {
		errs = multierror.Append(errs, fmt.Errorf("batch.threads must not be negative, got %d", c.Batch.Threads))
	}
	if !validMode(c.Batch.Mode) {
		errs = multierror.Append(errs, fmt.Errorf("batch.mode must be %q or %q, got %q", ModeSamples, ModeLenient, c.Batch.Mode))
	}
	switch c.Batch.Progress {
	case ProgressAuto, ProgressBar, ProgressPlain, ProgressNone:
	default:
		errs = multierror.Append(errs, fmt.Errorf("batch.progress must be one of auto, bar, plain, none, got %q", c.Batch.Progress))
	}
	if c.Tools.FFmpeg == "" {
		errs = multierror.Append(errs, fmt.Errorf("tools.ffmpeg must not be empty"))
	}
	if c.Tools.FFprobe == "" {
		errs = multierror.Append(errs, fmt.Errorf("tools.ffprobe must not be empty"))
	}
	if c.Detector.NoiseDB >= 0 {
		errs = multierror.Append(errs, fmt.Errorf("detector.noise_db must be below 0, got %v", c.Detector.NoiseDB))
	}
	if c.Detector.MinSilence <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("detector.min_silence must be positive, got %v", c.Detector.MinSilence))
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func validMode(m string) bool {
	return m == ModeSamples || m == ModeLenient
}

// ConfigBuilder layers configuration sources on top of the embedded defaults.
//
// Sources apply in call order, so the usual chain is file, then environment, then flags.
// Errors from any layer are collected and returned by [ConfigBuilder.Build].
type ConfigBuilder struct {
	config Config
	errs   *multierror.Error
}

// NewConfigBuilder starts from [DefaultConfig].
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{config: *DefaultConfig()}
}

// NewConfigBuilderFrom starts from an existing snapshot instead of the defaults.
func NewConfigBuilderFrom(base Config) *ConfigBuilder {
	return &ConfigBuilder{config: base}
}

// WithFile merges the TOML file at path. A missing file is only an error when required is set.
func (b *ConfigBuilder) WithFile(path string, required bool) *ConfigBuilder {
	if path == "" {
		return b
	}
	if _, err := os.Stat(path); err != nil {
		if required {
			b.errs = multierror.Append(b.errs, fmt.Errorf("%w: %s", ErrMissingConfig, path))
		}
		return b
	}
	if err := decodeFile(path, &b.config); err != nil {
		b.errs = multierror.Append(b.errs, err)
	}
	return b
}

// WithEnv applies CROSSTRIM_* variables read through lookup (normally [os.LookupEnv]).
func (b *ConfigBuilder) WithEnv(lookup func(string) (string, bool)) *ConfigBuilder {
	if lookup == nil {
		return b
	}
	env := envReader{lookup: lookup}

	if v, ok := env.float("CROSSTRIM_TAKE"); ok {
		b.config.Sync.Take = v
		b.config.Batch.Take = v
	}
	if v, ok := env.int("CROSSTRIM_THREADS"); ok {
		b.config.Batch.Threads = v
	}
	if v, ok := env.str("CROSSTRIM_MODE"); ok {
		b.config.Sync.Mode = v
		b.config.Batch.Mode = v
	}
	if v, ok := env.str("CROSSTRIM_PROGRESS"); ok {
		b.config.Batch.Progress = v
	}
	if v, ok := env.str("CROSSTRIM_FFMPEG"); ok {
		b.config.Tools.FFmpeg = v
	}
	if v, ok := env.str("CROSSTRIM_FFPROBE"); ok {
		b.config.Tools.FFprobe = v
	}
	if v, ok := env.str("CROSSTRIM_DB"); ok {
		b.config.Database.Path = v
	}
	if v, ok := env.str("CROSSTRIM_LOG_LEVEL"); ok {
		b.config.Log.Level = v
	}

	for _, err := range env.errs {
		b.errs = multierror.Append(b.errs, err)
	}
	return b
}

// With applies an arbitrary override, typically explicit command line flags.
func (b *ConfigBuilder) With(fn func(*Config)) *ConfigBuilder {
	if fn != nil {
		fn(&b.config)
	}
	return b
}

// Build validates the layered result and returns it by value.
func (b *ConfigBuilder) Build() (Config, error) {
	if err := b.errs.ErrorOrNil(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) int(key string) (int, bool) {
	v, ok := e.str(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return 0, false
	}
	return n, true
}

func (e *envReader) float(key string) (float64, bool) {
	v, ok := e.str(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return 0, false
	}
	return f, true
}
