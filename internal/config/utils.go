package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from, in increasing priority: built-in
// defaults, the config file at path (CONFIG_FILE when path is empty) and
// environment variables. A .env file in the working directory is merged into
// the environment first; existing variables win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.SessionDir) == "" {
		return errors.New("session_dir must not be empty")
	}
	if strings.TrimSpace(c.TempDir) == "" {
		return errors.New("temp_dir must not be empty")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max_file_size must be positive, got %d", c.MaxFileSize)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be within 1..100, got %d", c.Image.JPEGQuality)
	}
	if c.Image.MaxSide < 0 {
		return fmt.Errorf("image max_side must not be negative, got %d", c.Image.MaxSide)
	}
	if c.Image.OverlayOpacity < 0 || c.Image.OverlayOpacity > 1 {
		return fmt.Errorf("overlay_opacity must be within 0..1, got %v", c.Image.OverlayOpacity)
	}
	return nil
}

// OverlayPath returns the overlay asset path or "" when no overlay is set.
func (c ImageConfig) OverlayPath() string {
	if c.OverlayFile == "" {
		return ""
	}
	return filepath.Join(c.AssetsDir, c.OverlayFile)
}

func (c ImageConfig) FontPath() string {
	if c.FontFile == "" {
		return ""
	}
	return filepath.Join(c.AssetsDir, c.FontFile)
}
