// Package config loads pipeline settings: built-in defaults, then an
// optional TOML file, then environment variables.
package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/GriffinCanCode/cliprelay/internal/audio"
	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
	"github.com/GriffinCanCode/cliprelay/internal/remote"
	"github.com/GriffinCanCode/cliprelay/internal/transcribe"
	"github.com/GriffinCanCode/cliprelay/internal/translate"
)

// ConfigEnv names the variable holding an explicit config file path.
const ConfigEnv = "CLIPRELAY_CONFIG"

type Config struct {
	Audio      AudioConfig      `toml:"audio"`
	Recorder   RecorderConfig   `toml:"recorder"`
	Transcribe TranscribeConfig `toml:"transcribe"`
	Translate  TranslateConfig  `toml:"translate"`
	Server     ServerConfig     `toml:"server"`
	Log        LogConfig        `toml:"log"`
}

type AudioConfig struct {
	Dir             string   `toml:"dir"`
	SampleRate      int      `toml:"sample_rate"`
	Channels        int      `toml:"channels"`
	BitDepth        int      `toml:"bit_depth"`
	ChunkFrames     int      `toml:"chunk_frames"`
	ClipSeconds     float64  `toml:"clip_seconds"`
	InputDevice     string   `toml:"input_device"`
	ExcludedDevices []string `toml:"excluded_devices"`
}

type RecorderConfig struct {
	Workers     int           `toml:"workers"`
	BackoffBase time.Duration `toml:"backoff_base"`
	BackoffMax  time.Duration `toml:"backoff_max"`
}

type TranscribeConfig struct {
	OutDir   string        `toml:"out_dir"`
	APIKey   string        `toml:"api_key"`
	BaseURL  string        `toml:"base_url"`
	Model    string        `toml:"model"`
	Language string        `toml:"language"`
	Settle   time.Duration `toml:"settle"`
	Timeout  time.Duration `toml:"timeout"`
}

type TranslateConfig struct {
	OutDir       string        `toml:"out_dir"`
	APIKey       string        `toml:"api_key"`
	BaseURL      string        `toml:"base_url"`
	Model        string        `toml:"model"`
	Language     string        `toml:"language"`
	Temperature  float64       `toml:"temperature"`
	HistoryLimit int           `toml:"history_limit"`
	Settle       time.Duration `toml:"settle"`
	Timeout      time.Duration `toml:"timeout"`
}

type ServerConfig struct {
	HTTPAddr string `toml:"http_addr"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the built-in settings.
func Default() *Config {
	f := audio.DefaultFormat()
	return &Config{
		Audio: AudioConfig{
			Dir:         "audio_clips",
			SampleRate:  f.SampleRate,
			Channels:    f.Channels,
			BitDepth:    f.BitDepth,
			ChunkFrames: f.ChunkFrames,
			ClipSeconds: f.ClipSeconds,
		},
		Recorder: RecorderConfig{
			Workers:     2,
			BackoffBase: 500 * time.Millisecond,
			BackoffMax:  10 * time.Second,
		},
		Transcribe: TranscribeConfig{
			OutDir:   "transcriptions",
			BaseURL:  remote.GroqBaseURL,
			Model:    transcribe.DefaultModel,
			Language: transcribe.DefaultLanguage,
			Settle:   transcribe.DefaultSettle,
			Timeout:  remote.DefaultTimeout,
		},
		Translate: TranslateConfig{
			OutDir:       "translations",
			BaseURL:      remote.OpenAIBaseURL,
			Model:        translate.DefaultModel,
			Temperature:  translate.DefaultTemperature,
			HistoryLimit: translate.DefaultHistoryLimit,
			Settle:       translate.DefaultSettle,
			Timeout:      remote.DefaultTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// Load builds the configuration. path may be empty: then CLIPRELAY_CONFIG
// and the user config dir are tried, and a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if path = os.Getenv(ConfigEnv); path != "" {
			explicit = true
		} else {
			path = configFilePath()
		}
	}

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		switch {
		case err == nil:
			for _, key := range md.Undecoded() {
				slog.Warn("unknown config key", "file", path, "key", key.String())
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "read config %s", path)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Audio.Dir = expandTilde(cfg.Audio.Dir)
	cfg.Transcribe.OutDir = expandTilde(cfg.Transcribe.OutDir)
	cfg.Translate.OutDir = expandTilde(cfg.Translate.OutDir)
	cfg.Log.File = expandTilde(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	a := &cfg.Audio
	a.Dir = getEnv("AUDIO_DIR", a.Dir)
	a.SampleRate = getEnvInt("SAMPLE_RATE", a.SampleRate)
	a.Channels = getEnvInt("CHANNELS", a.Channels)
	a.ChunkFrames = getEnvInt("CHUNK_FRAMES", a.ChunkFrames)
	a.ClipSeconds = getEnvFloat("CLIP_SECONDS", a.ClipSeconds)
	a.InputDevice = getEnv("INPUT_DEVICE", a.InputDevice)
	a.ExcludedDevices = getEnvList("EXCLUDED_AUDIO_DEVICES", a.ExcludedDevices)

	r := &cfg.Recorder
	r.Workers = getEnvInt("RECORDER_WORKERS", r.Workers)
	r.BackoffBase = getEnvDuration("RECORDER_BACKOFF_BASE", r.BackoffBase)
	r.BackoffMax = getEnvDuration("RECORDER_BACKOFF_MAX", r.BackoffMax)

	tc := &cfg.Transcribe
	tc.OutDir = getEnv("TRANSCRIPT_DIR", tc.OutDir)
	tc.APIKey = getEnv("GROQ_API_KEY", tc.APIKey)
	tc.BaseURL = getEnv("GROQ_BASE_URL", tc.BaseURL)
	tc.Model = getEnv("TRANSCRIBE_MODEL", tc.Model)
	tc.Language = getEnv("TRANSCRIBE_LANGUAGE", tc.Language)
	tc.Settle = getEnvDuration("TRANSCRIBE_SETTLE", tc.Settle)

	tr := &cfg.Translate
	tr.OutDir = getEnv("TRANSLATION_DIR", tr.OutDir)
	tr.APIKey = getEnv("OPENAI_API_KEY", tr.APIKey)
	tr.BaseURL = getEnv("OPENAI_BASE_URL", tr.BaseURL)
	tr.Model = getEnv("TRANSLATE_MODEL", tr.Model)
	tr.Language = getEnv("TARGET_LANGUAGE", tr.Language)
	tr.Temperature = getEnvFloat("TRANSLATE_TEMPERATURE", tr.Temperature)
	tr.HistoryLimit = getEnvInt("TRANSLATE_HISTORY", tr.HistoryLimit)
	tr.Settle = getEnvDuration("TRANSLATE_SETTLE", tr.Settle)

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
}

// Format returns the capture format described by the audio section.
func (c *Config) Format() audio.Format {
	return audio.Format{
		SampleRate:  c.Audio.SampleRate,
		Channels:    c.Audio.Channels,
		BitDepth:    c.Audio.BitDepth,
		ChunkFrames: c.Audio.ChunkFrames,
		ClipSeconds: c.Audio.ClipSeconds,
	}
}

// Validate checks ranges. API keys are checked by the commands that need
// them, so recording works without credentials.
func (c *Config) Validate() error {
	if err := c.Format().Validate(); err != nil {
		return apperrors.Wrap(err, apperrors.CodeConfigInvalid, "audio format")
	}
	invalid := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.CodeConfigInvalid, format, args...)
	}
	switch {
	case c.Audio.Dir == "":
		return invalid("audio dir must be set")
	case c.Transcribe.OutDir == "" || c.Translate.OutDir == "":
		return invalid("transcript and translation dirs must be set")
	case c.Recorder.Workers < 1:
		return invalid("recorder workers must be at least 1, got %d", c.Recorder.Workers)
	case c.Recorder.BackoffBase < 0 || c.Recorder.BackoffMax < c.Recorder.BackoffBase:
		return invalid("recorder backoff must satisfy 0 <= base <= max")
	case c.Transcribe.Settle < 0 || c.Translate.Settle < 0:
		return invalid("settle delays must not be negative")
	case c.Translate.Temperature < 0 || c.Translate.Temperature > 2:
		return invalid("translate temperature must be within 0..2, got %g", c.Translate.Temperature)
	case c.Translate.HistoryLimit < 1:
		return invalid("translate history limit must be at least 1, got %d", c.Translate.HistoryLimit)
	}
	if strings.ContainsAny(c.Translate.Language, `/\`) {
		return invalid("target language %q must not contain path separators", c.Translate.Language)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, apperrors.Wrapf(err, apperrors.CodeConfigInvalid, "log level %q", s)
	}
	return l, nil
}

// RequireTranscribeKey fails with CONFIG_MISSING without a Groq key.
func (c *Config) RequireTranscribeKey() error {
	if c.Transcribe.APIKey == "" {
		return apperrors.New(apperrors.CodeConfigMissing, "GROQ_API_KEY is not set")
	}
	return nil
}

// RequireTranslateKey fails with CONFIG_MISSING without an OpenAI key or
// target language.
func (c *Config) RequireTranslateKey() error {
	if c.Translate.APIKey == "" {
		return apperrors.New(apperrors.CodeConfigMissing, "OPENAI_API_KEY is not set")
	}
	if c.Translate.Language == "" {
		return apperrors.New(apperrors.CodeConfigMissing, "target language is not set")
	}
	return nil
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "cliprelay")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "cliprelay")
	} else {
		return ""
	}
	return filepath.Join(configDir, "config.toml")
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
