// Package config loads and validates audiolib's runtime configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config encapsulates all configuration values for the analysis pipeline.
type Config struct {
	LibraryDir    string `toml:"library_dir"`
	DBDir         string `toml:"db_dir"`
	LogDir        string `toml:"log_dir"`
	CacheDir      string `toml:"cache_dir"`
	LogFormat     string `toml:"log_format"`
	LogLevel      string `toml:"log_level"`

	FFprobePath   string `toml:"ffprobe_path"`
	FFmpegPath    string `toml:"ffmpeg_path"`
	EnsembleBin   string `toml:"ensemble_bin"`
	EnsembleArgs  []string `toml:"ensemble_args"`

	LLMBaseURL    string  `toml:"llm_base_url"`
	LLMModel      string  `toml:"llm_model"`
	LLMTimeoutSec int     `toml:"llm_timeout_seconds"`

	TechnicalWorkers      int `toml:"technical_workers"`
	CreativeWorkers       int `toml:"creative_workers"`
	InstrumentationWorkers int `toml:"instrumentation_workers"`

	SchedulerMode string `toml:"scheduler_mode"` // "sequential" | "concurrent"

	ProbeWindowTimeoutSec int `toml:"probe_window_timeout_seconds"`

	NotificationsEnabled bool   `toml:"notifications_enabled"`
	NotificationsURL     string `toml:"notifications_url"`
}

const (
	defaultLibraryDir    = "~/Music/library"
	defaultDBDir         = "~/.local/share/audiolib/db"
	defaultLogDir        = "~/.local/share/audiolib/logs"
	defaultCacheDir      = "~/.local/share/audiolib/cache"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultFFprobePath   = "ffprobe"
	defaultFFmpegPath    = "ffmpeg"
	defaultEnsembleBin   = "audiolib-ensemble"
	defaultLLMBaseURL    = "http://127.0.0.1:11434/api/chat"
	defaultLLMModel      = "llama3.1"
	defaultLLMTimeoutSec = 60
	defaultWorkerDegree  = 4
	defaultProbeTimeout  = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		LibraryDir:             defaultLibraryDir,
		DBDir:                  defaultDBDir,
		LogDir:                 defaultLogDir,
		CacheDir:               defaultCacheDir,
		LogFormat:              defaultLogFormat,
		LogLevel:               defaultLogLevel,
		FFprobePath:            defaultFFprobePath,
		FFmpegPath:             defaultFFmpegPath,
		EnsembleBin:            defaultEnsembleBin,
		LLMBaseURL:             defaultLLMBaseURL,
		LLMModel:               defaultLLMModel,
		LLMTimeoutSec:          defaultLLMTimeoutSec,
		TechnicalWorkers:       defaultWorkerDegree,
		CreativeWorkers:        defaultWorkerDegree,
		InstrumentationWorkers: defaultWorkerDegree,
		SchedulerMode:          "concurrent",
		ProbeWindowTimeoutSec:  defaultProbeTimeout,
	}
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/audiolib/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/audiolib/config.toml")
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("audiolib.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.LibraryDir, err = expandPath(c.LibraryDir); err != nil {
		return fmt.Errorf("library_dir: %w", err)
	}
	if c.DBDir, err = expandPath(c.DBDir); err != nil {
		return fmt.Errorf("db_dir: %w", err)
	}
	if c.LogDir, err = expandPath(c.LogDir); err != nil {
		return fmt.Errorf("log_dir: %w", err)
	}
	if c.CacheDir, err = expandPath(c.CacheDir); err != nil {
		return fmt.Errorf("cache_dir: %w", err)
	}
	if strings.TrimSpace(c.FFprobePath) == "" {
		c.FFprobePath = defaultFFprobePath
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		c.FFmpegPath = defaultFFmpegPath
	}
	if strings.TrimSpace(c.EnsembleBin) == "" {
		c.EnsembleBin = defaultEnsembleBin
	}
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		c.LLMBaseURL = defaultLLMBaseURL
	}
	if strings.TrimSpace(c.LLMModel) == "" {
		c.LLMModel = defaultLLMModel
	}
	if c.LLMTimeoutSec <= 0 {
		c.LLMTimeoutSec = defaultLLMTimeoutSec
	}
	if c.TechnicalWorkers <= 0 {
		c.TechnicalWorkers = defaultWorkerDegree
	}
	if c.CreativeWorkers <= 0 {
		c.CreativeWorkers = defaultWorkerDegree
	}
	if c.InstrumentationWorkers <= 0 {
		c.InstrumentationWorkers = defaultWorkerDegree
	}
	if strings.TrimSpace(c.SchedulerMode) == "" {
		c.SchedulerMode = "concurrent"
	}
	if c.ProbeWindowTimeoutSec <= 0 {
		c.ProbeWindowTimeoutSec = defaultProbeTimeout
	}
	if strings.TrimSpace(c.LogFormat) == "" {
		c.LogFormat = defaultLogFormat
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = defaultLogLevel
	}
	return nil
}

// Validate checks invariants that normalize cannot repair with a default.
func (c *Config) Validate() error {
	for _, degree := range []int{c.TechnicalWorkers, c.CreativeWorkers, c.InstrumentationWorkers} {
		if degree < 1 || degree > 8 {
			return fmt.Errorf("worker pool degree must be in [1,8], got %d", degree)
		}
	}
	switch strings.ToLower(c.SchedulerMode) {
	case "sequential", "concurrent":
	default:
		return fmt.Errorf("scheduler_mode must be 'sequential' or 'concurrent', got %q", c.SchedulerMode)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be 'console' or 'json', got %q", c.LogFormat)
	}
	return nil
}

// EnsureDirectories creates the directories this config references.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.LibraryDir, c.DBDir, c.LogDir, c.CacheDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ExpandPath expands a leading "~" to the user's home directory. Exported
// for CLI commands that resolve user-supplied paths the same way config
// fields are normalized.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

// CreateSample writes the default configuration to path as TOML.
func CreateSample(path string) error {
	cfg := Default()
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal sample config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			return home, nil
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func homeDir() (string, error) {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return u.HomeDir, nil
}
