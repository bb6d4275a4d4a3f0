package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ServerConfig is the runtime configuration of the booth server. Values come
// from PHOTOBOOTH_* environment variables; command-line flags override them.
type ServerConfig struct {
	Listen        string        `env:"PHOTOBOOTH_LISTEN" envDefault:":3000"`
	DBPath        string        `env:"PHOTOBOOTH_DB_PATH" envDefault:"photobooth.db"`
	UploadDir     string        `env:"PHOTOBOOTH_UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL string        `env:"PHOTOBOOTH_PUBLIC_BASE_URL"`
	TuningPath    string        `env:"PHOTOBOOTH_TUNING"`
	SessionTTL    time.Duration `env:"PHOTOBOOTH_SESSION_TTL" envDefault:"10m"`
	MaxUploadMB   int64         `env:"PHOTOBOOTH_MAX_UPLOAD_MB" envDefault:"8"`
	// Retention deletes shared photos older than this. Zero keeps them forever.
	Retention time.Duration `env:"PHOTOBOOTH_RETENTION"`
	LogFile   string        `env:"PHOTOBOOTH_LOG_FILE"`
	Debug     bool          `env:"PHOTOBOOTH_DEBUG"`

	ShareTitle       string `env:"PHOTOBOOTH_SHARE_TITLE" envDefault:"Christmas WebAR Photo Frame 2025"`
	ShareDescription string `env:"PHOTOBOOTH_SHARE_DESCRIPTION" envDefault:"クリスマスのフレームで撮影した写真をシェア！"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadServerConfig reads optional dotenv files, then the process environment.
// Variables already set in the environment are not overridden by the files.
// A missing dotenv file is not an error.
func LoadServerConfig(dotenvFiles ...string) (ServerConfig, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ServerConfig{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg ServerConfig
	if err := ParseEnv(&cfg); err != nil {
		return ServerConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return ServerConfig{}, err
	}
	return cfg, nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c ServerConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// Validate rejects settings the server cannot run with.
func (c ServerConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("upload dir must not be empty")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.MaxUploadMB)
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %s", c.Retention)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL)
	}
	return nil
}
