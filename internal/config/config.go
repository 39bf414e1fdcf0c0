package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/detection"
)

// Config is the full runtime configuration.
type Config struct {
	LogLevel   string           `mapstructure:"log_level" yaml:"log_level"`
	Detect     DetectConfig     `mapstructure:"detect" yaml:"detect"`
	Annotation AnnotationConfig `mapstructure:"annotation" yaml:"annotation"`
	Batch      BatchConfig      `mapstructure:"batch" yaml:"batch"`
	PDF        PDFConfig        `mapstructure:"pdf" yaml:"pdf"`
	OCR        OCRConfig        `mapstructure:"ocr" yaml:"ocr"`
}

// DetectConfig selects the line detector and its heuristics.
type DetectConfig struct {
	Variant           string      `mapstructure:"variant" yaml:"variant"`
	MaxLines          int         `mapstructure:"max_lines" yaml:"max_lines"`
	FallbackFractions []float64   `mapstructure:"fallback_fractions" yaml:"fallback_fractions"`
	Morph             MorphConfig `mapstructure:"morph" yaml:"morph"`
	Hough             HoughConfig `mapstructure:"hough" yaml:"hough"`
	Debug             DebugConfig `mapstructure:"debug" yaml:"debug"`
}

type MorphConfig struct {
	Threshold           int     `mapstructure:"threshold" yaml:"threshold"`
	KernelWidthRatio    float64 `mapstructure:"kernel_width_ratio" yaml:"kernel_width_ratio"`
	MinWidthRatio       float64 `mapstructure:"min_width_ratio" yaml:"min_width_ratio"`
	MaxThickness        int     `mapstructure:"max_thickness" yaml:"max_thickness"`
	OnInsufficientLines string  `mapstructure:"on_insufficient_lines" yaml:"on_insufficient_lines"`
}

type HoughConfig struct {
	MinLineLength       int    `mapstructure:"min_line_length" yaml:"min_line_length"`
	MaxLineGap          int    `mapstructure:"max_line_gap" yaml:"max_line_gap"`
	EdgeThreshold       int    `mapstructure:"edge_threshold" yaml:"edge_threshold"`
	VoteThreshold       int    `mapstructure:"vote_threshold" yaml:"vote_threshold"`
	HorizontalTolerance int    `mapstructure:"horizontal_tolerance" yaml:"horizontal_tolerance"`
	MergeTolerance      int    `mapstructure:"merge_tolerance" yaml:"merge_tolerance"`
	OnInsufficientLines string `mapstructure:"on_insufficient_lines" yaml:"on_insufficient_lines"`
}

// DebugConfig controls the diagnostic overlay. Path is fixed per process, not
// per output directory.
type DebugConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

type AnnotationConfig struct {
	Margin    int    `mapstructure:"margin" yaml:"margin"`
	Status    string `mapstructure:"status" yaml:"status"`
	MinFields int    `mapstructure:"min_fields" yaml:"min_fields"`
	Path      string `mapstructure:"path" yaml:"path"`
}

type BatchConfig struct {
	DataDir      string        `mapstructure:"data_dir" yaml:"data_dir"`
	OutputDir    string        `mapstructure:"output_dir" yaml:"output_dir"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	LoadAttempts int           `mapstructure:"load_attempts" yaml:"load_attempts"`
	LoadDelay    time.Duration `mapstructure:"load_delay" yaml:"load_delay"`
	Report       string        `mapstructure:"report" yaml:"report"`
	SaveHeader   bool          `mapstructure:"save_header" yaml:"save_header"`
}

type PDFConfig struct {
	DPI float64 `mapstructure:"dpi" yaml:"dpi"`
}

type OCRConfig struct {
	Language      string  `mapstructure:"language" yaml:"language"`
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence"`
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v         *viper.Viper
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config. An empty
// cfgFile searches ./form-segment.yaml and $HOME/.form-segment/; a missing
// file is not an error. Each flag in flags overrides the config key it is
// mapped to when set on the command line.
func NewManager(cfgFile string, flags map[string]*pflag.Flag) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile, flags); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults, environment and config file.
func (cm *Manager) initViper(cfgFile string, flags map[string]*pflag.Flag) error {
	v := cm.v
	for key, value := range DefaultValues() {
		v.SetDefault(key, value)
	}

	// FORMSEG_DETECT_VARIANT overrides detect.variant
	v.SetEnvPrefix("FORMSEG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag.Name, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("form-segment")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.form-segment")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the file the config was read from, or "".
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration. Reloads that fail to
// parse or validate keep the previous config.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	switch c.Detect.Variant {
	case detection.VariantMorph, detection.VariantHough:
	default:
		return fmt.Errorf("detect.variant: unknown detector %q", c.Detect.Variant)
	}
	if _, err := detection.ParsePolicy(c.Detect.Morph.OnInsufficientLines); err != nil {
		return fmt.Errorf("detect.morph.on_insufficient_lines: %w", err)
	}
	if _, err := detection.ParsePolicy(c.Detect.Hough.OnInsufficientLines); err != nil {
		return fmt.Errorf("detect.hough.on_insufficient_lines: %w", err)
	}
	if c.Detect.MaxLines < 2 || c.Detect.MaxLines > 3 {
		return fmt.Errorf("detect.max_lines must be 2 or 3, got %d", c.Detect.MaxLines)
	}
	if c.Detect.Morph.Threshold < 0 || c.Detect.Morph.Threshold > 255 {
		return fmt.Errorf("detect.morph.threshold must be 0-255, got %d", c.Detect.Morph.Threshold)
	}
	if c.Detect.Hough.EdgeThreshold < 0 || c.Detect.Hough.EdgeThreshold > 255 {
		return fmt.Errorf("detect.hough.edge_threshold must be 0-255, got %d", c.Detect.Hough.EdgeThreshold)
	}
	for _, f := range c.Detect.FallbackFractions {
		if f < 0 || f >= 1 {
			return fmt.Errorf("detect.fallback_fractions must lie in [0,1), got %v", c.Detect.FallbackFractions)
		}
	}
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	return nil
}

// DetectionConfig converts the detect section into detector settings.
func (c *Config) DetectionConfig() (detection.Config, error) {
	morphPolicy, err := detection.ParsePolicy(c.Detect.Morph.OnInsufficientLines)
	if err != nil {
		return detection.Config{}, err
	}
	houghPolicy, err := detection.ParsePolicy(c.Detect.Hough.OnInsufficientLines)
	if err != nil {
		return detection.Config{}, err
	}

	fractions := append([]float64(nil), c.Detect.FallbackFractions...)

	return detection.Config{
		Variant: c.Detect.Variant,
		Morph: detection.MorphConfig{
			Threshold:         uint8(c.Detect.Morph.Threshold),
			KernelWidthRatio:  c.Detect.Morph.KernelWidthRatio,
			MinWidthRatio:     c.Detect.Morph.MinWidthRatio,
			MaxThickness:      c.Detect.Morph.MaxThickness,
			MaxLines:          c.Detect.MaxLines,
			Policy:            morphPolicy,
			FallbackFractions: fractions,
		},
		Hough: detection.HoughConfig{
			MinLineLength:       c.Detect.Hough.MinLineLength,
			MaxLineGap:          c.Detect.Hough.MaxLineGap,
			EdgeThreshold:       uint8(c.Detect.Hough.EdgeThreshold),
			VoteThreshold:       c.Detect.Hough.VoteThreshold,
			HorizontalTolerance: c.Detect.Hough.HorizontalTolerance,
			MergeTolerance:      c.Detect.Hough.MergeTolerance,
			MaxLines:            c.Detect.MaxLines,
			Policy:              houghPolicy,
			FallbackFractions:   fractions,
		},
	}, nil
}

// NewDetector builds the configured line detector, wiring the debug overlay
// when enabled.
func (c *Config) NewDetector(logger *slog.Logger) (detection.Detector, error) {
	cfg, err := c.DetectionConfig()
	if err != nil {
		return nil, err
	}

	var hook detection.DebugHook
	if c.Detect.Debug.Enabled {
		hook = detection.DebugFile(c.Detect.Debug.Path, logger)
	}
	return detection.NewDetector(cfg, hook)
}

// AnnotationDetector builds the annotation-driven detector.
func (c *Config) AnnotationDetector() *annotation.Detector {
	return &annotation.Detector{
		Margin:    c.Annotation.Margin,
		Status:    c.Annotation.Status,
		MinFields: c.Annotation.MinFields,
	}
}

// SlogLevel maps log_level onto slog. Unknown names mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger at the configured level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.SlogLevel()}))
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# form-segment configuration
# Every key can be overridden by FORMSEG_<KEY> with dots replaced by underscores,
# e.g. FORMSEG_DETECT_VARIANT=hough

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
