package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	apperrors "github.com/GriffinCanCode/cliprelay/internal/errors"
)

var envVars = []string{
	ConfigEnv, "AUDIO_DIR", "TRANSCRIPT_DIR", "TRANSLATION_DIR", "SAMPLE_RATE",
	"CHANNELS", "CHUNK_FRAMES", "CLIP_SECONDS", "INPUT_DEVICE",
	"EXCLUDED_AUDIO_DEVICES", "RECORDER_WORKERS", "RECORDER_BACKOFF_BASE",
	"RECORDER_BACKOFF_MAX", "GROQ_API_KEY", "GROQ_BASE_URL", "TRANSCRIBE_MODEL",
	"TRANSCRIBE_LANGUAGE", "TRANSCRIBE_SETTLE", "OPENAI_API_KEY",
	"OPENAI_BASE_URL", "TRANSLATE_MODEL", "TRANSLATE_TEMPERATURE",
	"TRANSLATE_HISTORY", "TRANSLATE_SETTLE", "TARGET_LANGUAGE", "HTTP_ADDR",
	"LOG_LEVEL", "LOG_FILE",
}

// isolate clears every variable Load reads and points the user config dir
// at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Audio.Dir != "audio_clips" {
		t.Errorf("Audio.Dir = %q, want %q", cfg.Audio.Dir, "audio_clips")
	}
	f := cfg.Format()
	if f.SampleRate != 44100 || f.Channels != 1 || f.BitDepth != 16 || f.ChunkFrames != 1024 || f.ClipSeconds != 3 {
		t.Errorf("Format() = %+v, want 44100Hz mono 16-bit 1024-frame 3s", f)
	}
	if f.ChunkCount() != 129 {
		t.Errorf("ChunkCount() = %d, want 129", f.ChunkCount())
	}
	if cfg.Recorder.Workers != 2 {
		t.Errorf("Recorder.Workers = %d, want 2", cfg.Recorder.Workers)
	}
	if cfg.Transcribe.Model != "whisper-large-v3" || cfg.Transcribe.Language != "sv" {
		t.Errorf("Transcribe = %s/%s, want whisper-large-v3/sv", cfg.Transcribe.Model, cfg.Transcribe.Language)
	}
	if cfg.Translate.Model != "gpt-4o-mini" {
		t.Errorf("Translate.Model = %q, want %q", cfg.Translate.Model, "gpt-4o-mini")
	}
	if cfg.Translate.Temperature != 0.7 {
		t.Errorf("Translate.Temperature = %f, want %f", cfg.Translate.Temperature, 0.7)
	}
	if cfg.Translate.HistoryLimit != 10 {
		t.Errorf("Translate.HistoryLimit = %d, want 10", cfg.Translate.HistoryLimit)
	}
	if cfg.Server.HTTPAddr != "" {
		t.Errorf("Server.HTTPAddr = %q, want empty", cfg.Server.HTTPAddr)
	}
	if len(cfg.Audio.ExcludedDevices) != 0 {
		t.Errorf("ExcludedDevices = %v, want none", cfg.Audio.ExcludedDevices)
	}
}

func TestLoadWithEnv(t *testing.T) {
	isolate(t)
	t.Setenv("AUDIO_DIR", "/tmp/clips")
	t.Setenv("SAMPLE_RATE", "48000")
	t.Setenv("RECORDER_WORKERS", "3")
	t.Setenv("RECORDER_BACKOFF_BASE", "250ms")
	t.Setenv("EXCLUDED_AUDIO_DEVICES", "zoom, , loopback")
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("TARGET_LANGUAGE", "English")
	t.Setenv("TRANSLATE_TEMPERATURE", "0.2")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}

	if cfg.Audio.Dir != "/tmp/clips" {
		t.Errorf("Audio.Dir = %q, want %q", cfg.Audio.Dir, "/tmp/clips")
	}
	if cfg.Audio.SampleRate != 48000 {
		t.Errorf("SampleRate = %d, want %d", cfg.Audio.SampleRate, 48000)
	}
	if cfg.Recorder.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Recorder.Workers)
	}
	if cfg.Recorder.BackoffBase != 250*time.Millisecond {
		t.Errorf("BackoffBase = %v, want 250ms", cfg.Recorder.BackoffBase)
	}
	if got := cfg.Audio.ExcludedDevices; len(got) != 2 || got[0] != "zoom" || got[1] != "loopback" {
		t.Errorf("ExcludedDevices = %v, want [zoom loopback]", got)
	}
	if cfg.Transcribe.APIKey != "gsk-test" {
		t.Errorf("Transcribe.APIKey = %q, want %q", cfg.Transcribe.APIKey, "gsk-test")
	}
	if cfg.Translate.Language != "English" {
		t.Errorf("Translate.Language = %q, want %q", cfg.Translate.Language, "English")
	}
	if cfg.Translate.Temperature != 0.2 {
		t.Errorf("Temperature = %f, want %f", cfg.Translate.Temperature, 0.2)
	}
	if cfg.Server.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, ":9000")
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "cliprelay.toml")
	data := `
[audio]
dir = "/var/clips"
clip_seconds = 5.0

[recorder]
workers = 4
backoff_max = "2s"

[translate]
language = "German"
history_limit = 4

[server]
http_addr = "127.0.0.1:8080"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	// Environment wins over the file.
	t.Setenv("RECORDER_WORKERS", "2")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) = %v", path, err)
	}
	if cfg.Audio.Dir != "/var/clips" {
		t.Errorf("Audio.Dir = %q, want %q", cfg.Audio.Dir, "/var/clips")
	}
	if cfg.Audio.ClipSeconds != 5 {
		t.Errorf("ClipSeconds = %g, want 5", cfg.Audio.ClipSeconds)
	}
	if cfg.Audio.SampleRate != 44100 {
		t.Errorf("SampleRate = %d, want default 44100", cfg.Audio.SampleRate)
	}
	if cfg.Recorder.Workers != 2 {
		t.Errorf("Workers = %d, want env override 2", cfg.Recorder.Workers)
	}
	if cfg.Recorder.BackoffMax != 2*time.Second {
		t.Errorf("BackoffMax = %v, want 2s", cfg.Recorder.BackoffMax)
	}
	if cfg.Translate.Language != "German" || cfg.Translate.HistoryLimit != 4 {
		t.Errorf("Translate = %s/%d, want German/4", cfg.Translate.Language, cfg.Translate.HistoryLimit)
	}
	if cfg.Server.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:8080")
	}
}

func TestLoadUserConfigDir(t *testing.T) {
	xdg := isolate(t)
	dir := filepath.Join(xdg, "cliprelay")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[recorder]\nworkers = 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Recorder.Workers != 5 {
		t.Errorf("Workers = %d, want 5", cfg.Recorder.Workers)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("Load(missing) err = %v, want CONFIG_INVALID", err)
	}

	t.Setenv(ConfigEnv, filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(""); !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
		t.Errorf("Load() via %s err = %v, want CONFIG_INVALID", ConfigEnv, err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults", func(*Config) {}, true},
		{"one worker", func(c *Config) { c.Recorder.Workers = 1 }, true},
		{"zero workers", func(c *Config) { c.Recorder.Workers = 0 }, false},
		{"24-bit", func(c *Config) { c.Audio.BitDepth = 24 }, false},
		{"clip shorter than chunk", func(c *Config) { c.Audio.ClipSeconds = 0.001 }, false},
		{"empty audio dir", func(c *Config) { c.Audio.Dir = "" }, false},
		{"backoff max below base", func(c *Config) { c.Recorder.BackoffMax = time.Millisecond }, false},
		{"hot temperature", func(c *Config) { c.Translate.Temperature = 2.5 }, false},
		{"zero history", func(c *Config) { c.Translate.HistoryLimit = 0 }, false},
		{"language with slash", func(c *Config) { c.Translate.Language = "../etc" }, false},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.valid && !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
				t.Errorf("Validate() = %v, want CONFIG_INVALID", err)
			}
		})
	}
}

func TestRequireKeys(t *testing.T) {
	cfg := Default()
	if err := cfg.RequireTranscribeKey(); !apperrors.IsCode(err, apperrors.CodeConfigMissing) {
		t.Errorf("RequireTranscribeKey() = %v, want CONFIG_MISSING", err)
	}
	cfg.Transcribe.APIKey = "k"
	if err := cfg.RequireTranscribeKey(); err != nil {
		t.Errorf("RequireTranscribeKey() = %v, want nil", err)
	}

	cfg.Translate.APIKey = "k"
	if err := cfg.RequireTranslateKey(); !apperrors.IsCode(err, apperrors.CodeConfigMissing) {
		t.Errorf("RequireTranslateKey() without language = %v, want CONFIG_MISSING", err)
	}
	cfg.Translate.Language = "English"
	if err := cfg.RequireTranslateKey(); err != nil {
		t.Errorf("RequireTranslateKey() = %v, want nil", err)
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_STRING", "hello")
	if v := getEnv("TEST_STRING", "default"); v != "hello" {
		t.Errorf("getEnv = %q, want %q", v, "hello")
	}
	if v := getEnv("NONEXISTENT", "default"); v != "default" {
		t.Errorf("getEnv = %q, want %q", v, "default")
	}

	t.Setenv("TEST_INT", "42")
	if v := getEnvInt("TEST_INT", 0); v != 42 {
		t.Errorf("getEnvInt = %d, want %d", v, 42)
	}
	t.Setenv("TEST_INT_INVALID", "not-a-number")
	if v := getEnvInt("TEST_INT_INVALID", 100); v != 100 {
		t.Errorf("getEnvInt with invalid = %d, want %d", v, 100)
	}

	t.Setenv("TEST_FLOAT", "3.14")
	if v := getEnvFloat("TEST_FLOAT", 0.0); v != 3.14 {
		t.Errorf("getEnvFloat = %f, want %f", v, 3.14)
	}
	if v := getEnvFloat("NONEXISTENT", 2.71); v != 2.71 {
		t.Errorf("getEnvFloat = %f, want %f", v, 2.71)
	}

	t.Setenv("TEST_DURATION", "1m30s")
	if v := getEnvDuration("TEST_DURATION", 0); v != 90*time.Second {
		t.Errorf("getEnvDuration = %v, want %v", v, 90*time.Second)
	}
	t.Setenv("TEST_DURATION_INVALID", "soon")
	if v := getEnvDuration("TEST_DURATION_INVALID", time.Second); v != time.Second {
		t.Errorf("getEnvDuration with invalid = %v, want %v", v, time.Second)
	}
}
