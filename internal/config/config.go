package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr        string   `yaml:"listen_addr" toml:"listen_addr" env:"LISTEN_ADDR"`
	SessionDir        string   `yaml:"session_dir" toml:"session_dir" env:"SESSION_DIR"`
	TempDir           string   `yaml:"temp_dir" toml:"temp_dir" env:"TEMP_DIR"`
	FetchTimeout      Duration `yaml:"fetch_timeout" toml:"fetch_timeout" env:"FETCH_TIMEOUT"`
	MaxFileSize       int64    `yaml:"max_file_size" toml:"max_file_size" env:"MAX_FILE_SIZE"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout" toml:"read_header_timeout" env:"READ_HEADER_TIMEOUT"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	CORSOrigins       []string `yaml:"cors_origins" toml:"cors_origins" env:"CORS_ORIGINS" envSeparator:","`

	Image    ImageConfig    `yaml:"image" toml:"image"`
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
	Log      LogConfig      `yaml:"log" toml:"log"`
}

type ImageConfig struct {
	Prepare        bool    `yaml:"prepare" toml:"prepare" env:"IMAGE_PREPARE"`
	MaxSide        int     `yaml:"max_side" toml:"max_side" env:"IMAGE_MAX_SIDE"`
	Square         bool    `yaml:"square" toml:"square" env:"IMAGE_SQUARE"`
	JPEGQuality    int     `yaml:"jpeg_quality" toml:"jpeg_quality" env:"JPEG_QUALITY"`
	AssetsDir      string  `yaml:"assets_dir" toml:"assets_dir" env:"ASSETS_DIR"`
	OverlayFile    string  `yaml:"overlay_file" toml:"overlay_file" env:"OVERLAY_FILE"`
	OverlayOpacity float64 `yaml:"overlay_opacity" toml:"overlay_opacity" env:"OVERLAY_OPACITY"`
	FontFile       string  `yaml:"font_file" toml:"font_file" env:"FONT_FILE"`
	Watermark      string  `yaml:"watermark" toml:"watermark" env:"WATERMARK"`
}

type TelegramConfig struct {
	APIURL string `yaml:"api_url" toml:"api_url" env:"TELEGRAM_API_URL"`
}

type LogConfig struct {
	Level  string `yaml:"level" toml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" toml:"format" env:"LOG_FORMAT"`
}

// Duration is a time.Duration that reads "10s"-style strings from YAML, TOML
// and environment variables alike.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

func Default() *Config {
	return &Config{
		ListenAddr:        ":5000",
		SessionDir:        "sessions",
		TempDir:           "temp",
		FetchTimeout:      Duration(10 * time.Second),
		MaxFileSize:       10 * 1024 * 1024,
		ReadHeaderTimeout: Duration(10 * time.Second),
		ShutdownTimeout:   Duration(15 * time.Second),
		Image: ImageConfig{
			Prepare:        true,
			MaxSide:        1080,
			JPEGQuality:    90,
			AssetsDir:      "assets",
			OverlayOpacity: 0.6,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
