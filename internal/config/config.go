// Package config loads service settings from defaults, a YAML file, a
// .env file and SPEECHTEXT_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/ieee0824/speechtext/audio"
	"github.com/ieee0824/speechtext/feature"
	"github.com/ieee0824/speechtext/internal/gate"
	"github.com/ieee0824/speechtext/internal/logging"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SPEECHTEXT_"

// Config holds every tunable of the service.
type Config struct {
	ModelDir string `yaml:"model_dir"`

	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	Workers               int    `yaml:"workers"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`

	SampleRate  int    `yaml:"sample_rate"`
	FFmpegPath  string `yaml:"ffmpeg_path"`
	FrameLength int    `yaml:"frame_length"`
	FrameStep   int    `yaml:"frame_step"`
	FFTLength   int    `yaml:"fft_length"`

	Limits gate.Limits `yaml:"limits"`

	UploadDir           string `yaml:"upload_dir"` // empty disables upload persistence
	FileLifetimeSeconds int    `yaml:"file_lifetime_seconds"`
	ReapIntervalSeconds int    `yaml:"reap_interval_seconds"`

	Log logging.Config `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ModelDir:              "model",
		Host:                  "127.0.0.1",
		Port:                  5000,
		Workers:               2,
		RequestTimeoutSeconds: 60,
		SampleRate:            16000,
		FFmpegPath:            "ffmpeg",
		FrameLength:           256,
		FrameStep:             160,
		FFTLength:             384,
		Limits:                gate.DefaultLimits(),
		UploadDir:             "",
		FileLifetimeSeconds:   300,
		ReapIntervalSeconds:   60,
		Log:                   logging.DefaultConfig(),
	}
}

// Load builds a Config. path names an optional YAML file; envFile an
// optional dotenv file whose absence is not an error. Variables already in
// the environment win over the dotenv file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"MODEL_DIR":   &c.ModelDir,
		"HOST":        &c.Host,
		"FFMPEG_PATH": &c.FFmpegPath,
		"UPLOAD_DIR":  &c.UploadDir,
		"LOG_LEVEL":   &c.Log.Level,
		"LOG_FORMAT":  &c.Log.Format,
		"LOG_FILE":    &c.Log.File,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":            &c.Port,
		"WORKERS":         &c.Workers,
		"REQUEST_TIMEOUT": &c.RequestTimeoutSeconds,
		"SAMPLE_RATE":     &c.SampleRate,
		"FRAME_LENGTH":    &c.FrameLength,
		"FRAME_STEP":      &c.FrameStep,
		"FFT_LENGTH":      &c.FFTLength,
		"MAX_FILES":       &c.Limits.MaxFiles,
		"FILE_LIFETIME":   &c.FileLifetimeSeconds,
		"REAP_INTERVAL":   &c.ReapIntervalSeconds,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v := os.Getenv(EnvPrefix + "MAX_FILE_SIZE_MB"); v != "" {
		mb, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_FILE_SIZE_MB: %w", EnvPrefix, err)
		}
		c.Limits.MaxFileSize = mb << 20
	}
	if v := os.Getenv(EnvPrefix + "ALLOWED_EXTENSIONS"); v != "" {
		c.Limits.AllowedExtensions = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.FeatureConfig().Validate(); err != nil {
		return err
	}
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("port %d out of range", c.Port)
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	case c.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.RequestTimeoutSeconds <= 0:
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeoutSeconds)
	case c.Limits.MaxFiles <= 0:
		return fmt.Errorf("max files must be positive, got %d", c.Limits.MaxFiles)
	case c.Limits.MaxFileSize <= 0:
		return fmt.Errorf("max file size must be positive, got %d", c.Limits.MaxFileSize)
	case len(c.Limits.AllowedExtensions) == 0:
		return errors.New("no allowed extensions")
	case c.FileLifetimeSeconds <= 0:
		return fmt.Errorf("file lifetime must be positive, got %d", c.FileLifetimeSeconds)
	case c.ReapIntervalSeconds <= 0:
		return fmt.Errorf("reap interval must be positive, got %d", c.ReapIntervalSeconds)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// FeatureConfig returns the spectrogram parameters.
func (c *Config) FeatureConfig() feature.Config {
	f := feature.DefaultConfig()
	f.FrameLength = c.FrameLength
	f.FrameStep = c.FrameStep
	f.FFTLength = c.FFTLength
	return f
}

// AudioConfig returns the loader parameters.
func (c *Config) AudioConfig() audio.Config {
	return audio.Config{TargetSampleRate: c.SampleRate, FFmpegPath: c.FFmpegPath}
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RequestTimeout returns the per-request transcription deadline.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// FileLifetime returns how long stored uploads are kept.
func (c *Config) FileLifetime() time.Duration {
	return time.Duration(c.FileLifetimeSeconds) * time.Second
}

// ReapInterval returns the delay between reaper sweeps.
func (c *Config) ReapInterval() time.Duration {
	return time.Duration(c.ReapIntervalSeconds) * time.Second
}
