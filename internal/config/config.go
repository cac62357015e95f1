package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/forPelevin/clipforge/internal/domain/highlights"
	"github.com/forPelevin/clipforge/internal/ports/adapters/openrouter"
)

const (
	AnalyzerLexicon    = "lexicon"
	AnalyzerOpenRouter = "openrouter"
)

type Config struct {
	Addr    string `yaml:"addr"`
	DataDir string `yaml:"data_dir"`

	Log       LogConfig       `yaml:"log"`
	Tools     ToolsConfig     `yaml:"tools"`
	Selection SelectionConfig `yaml:"selection"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer"`
	Render    RenderConfig    `yaml:"render"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	NATS      NATSConfig      `yaml:"nats"`
	CORS      CORSConfig      `yaml:"cors"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ToolsConfig struct {
	FFmpeg       string `yaml:"ffmpeg"`
	FFprobe      string `yaml:"ffprobe"`
	YtDlp        string `yaml:"yt_dlp"`
	Format       string `yaml:"format"`
	WhisperBin   string `yaml:"whisper_bin"`
	WhisperModel string `yaml:"whisper_model"`
}

type SelectionConfig struct {
	MinDuration float64            `yaml:"min_duration"`
	MaxDuration float64            `yaml:"max_duration"`
	TopK        int                `yaml:"top_k"`
	Distinct    bool               `yaml:"distinct"`
	RateCap     float64            `yaml:"rate_cap"`
	Weights     highlights.Weights `yaml:"weights"`
}

type AnalyzerConfig struct {
	Kind       string           `yaml:"kind"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
}

type OpenRouterConfig struct {
	APIKey       string   `yaml:"-"`
	Model        string   `yaml:"model"`
	BaseURL      string   `yaml:"base_url"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

type RenderConfig struct {
	BurnSubtitles bool   `yaml:"burn_subtitles"`
	Concurrency   int    `yaml:"concurrency"`
	Preset        string `yaml:"preset"`
	CRF           int    `yaml:"crf"`
	Threads       int    `yaml:"threads"`
}

type TimeoutsConfig struct {
	Acquire time.Duration `yaml:"acquire"`
	Analyze time.Duration `yaml:"analyze"`
	Render  time.Duration `yaml:"render"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type CORSConfig struct {
	AllowOrigins []string `yaml:"allow_origins"`
}

func Default() *Config {
	return &Config{
		Addr:    ":8080",
		DataDir: ".clipforge",
		Log:     LogConfig{Level: "info", Format: "json"},
		Tools: ToolsConfig{
			FFmpeg:       "ffmpeg",
			FFprobe:      "ffprobe",
			YtDlp:        "yt-dlp",
			WhisperBin:   ".cache/bin/whisper.cpp",
			WhisperModel: ".cache/models/ggml-base.bin",
		},
		Selection: SelectionConfig{
			MinDuration: 15,
			MaxDuration: 60,
			TopK:        5,
			Distinct:    true,
			RateCap:     highlights.DefaultRateCap,
			Weights:     highlights.DefaultWeights(),
		},
		Analyzer: AnalyzerConfig{
			Kind: AnalyzerLexicon,
			OpenRouter: OpenRouterConfig{
				Model:   "z-ai/glm-4.5-air:free",
				BaseURL: "https://openrouter.ai",
			},
		},
		Render: RenderConfig{Concurrency: 2, Preset: "veryfast", CRF: 18},
		Timeouts: TimeoutsConfig{
			Acquire: 30 * time.Minute,
			Analyze: 2 * time.Hour,
			Render:  20 * time.Minute,
		},
		NATS: NATSConfig{SubjectPrefix: "clipforge.events"},
		CORS: CORSConfig{AllowOrigins: []string{"*"}},
	}
}

// Load layers built-in defaults, the YAML file at path (or the first one
// found in the default locations), .env and then the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort: load .env if present

	cfg := Default()
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Analyzer.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	set(&c.Analyzer.OpenRouter.Model, "OPENROUTER_MODEL")
	set(&c.Analyzer.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	set(&c.Addr, "CLIPFORGE_ADDR")
	set(&c.DataDir, "CLIPFORGE_DATA_DIR")
	set(&c.NATS.URL, "NATS_URL")
	set(&c.Log.Level, "LOG_LEVEL")
	set(&c.Tools.WhisperBin, "CLIPFORGE_WHISPER_BIN")
	set(&c.Tools.WhisperModel, "CLIPFORGE_WHISPER_MODEL")
	if v := strings.TrimSpace(getenv("OPENROUTER_ALLOWED_HOSTS")); v != "" {
		c.Analyzer.OpenRouter.AllowedHosts = strings.Split(v, ",")
	}
}

func (c *Config) Validate() error {
	s := c.Selection
	if s.MinDuration <= 0 {
		return fmt.Errorf("min clip must be > 0")
	}
	if s.MaxDuration <= 0 {
		return fmt.Errorf("max clip must be > 0")
	}
	if s.MinDuration > s.MaxDuration {
		return fmt.Errorf("min clip must be <= max clip")
	}
	if s.TopK <= 0 {
		return fmt.Errorf("top_k must be > 0")
	}
	if s.RateCap <= 0 {
		return fmt.Errorf("rate_cap must be > 0")
	}
	if err := s.Weights.Validate(); err != nil {
		return err
	}
	if c.Tools.WhisperModel == "" {
		return fmt.Errorf("whisper model path is required")
	}
	if c.Render.Concurrency <= 0 {
		return fmt.Errorf("render concurrency must be > 0")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Analyzer.Kind {
	case AnalyzerLexicon:
		return nil
	case AnalyzerOpenRouter:
		if c.Analyzer.OpenRouter.APIKey == "" {
			return errors.New("OPENROUTER_API_KEY is required for the openrouter analyzer (set it in .env)")
		}
		return openrouter.ValidateBaseURL(c.Analyzer.OpenRouter.BaseURL, c.Analyzer.OpenRouter.AllowedHosts)
	default:
		return fmt.Errorf("unknown analyzer %q", c.Analyzer.Kind)
	}
}

func (c *Config) MediaDir() string { return filepath.Join(c.DataDir, "media") }
func (c *Config) ClipsDir() string { return filepath.Join(c.DataDir, "clips") }
func (c *Config) CacheDir() string { return filepath.Join(c.DataDir, "cache") }

func findConfigFile() string {
	candidates := []string{"./clipforge.yaml", "./clipforge.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".clipforge", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
