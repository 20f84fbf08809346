package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	OCR      OCRConfig      `mapstructure:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Matching MatchingConfig `mapstructure:"matching"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // "sqlite" | "postgres"
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Workers        int           `mapstructure:"workers"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract     string        `mapstructure:"tesseract"`
	HeicConverter string        `mapstructure:"heic_converter"`
	Pdftoppm      string        `mapstructure:"pdftoppm"`
	Language      string        `mapstructure:"language"`
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	DPI           int           `mapstructure:"dpi"`
	MaxPages      int           `mapstructure:"max_pages"`
	RemoteURL     string        `mapstructure:"remote_url"`
	RemoteTimeout time.Duration `mapstructure:"remote_timeout"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Temperature       float32       `mapstructure:"temperature"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
}

// MatchingConfig holds the matcher thresholds.
type MatchingConfig struct {
	MinScore            float64       `mapstructure:"min_score"`
	TrustScore          float64       `mapstructure:"trust_score"`
	AssistMinConfidence float64       `mapstructure:"assist_min_confidence"`
	AssistTimeout       time.Duration `mapstructure:"assist_timeout"`
	SampleSize          int           `mapstructure:"sample_size"`
	Workers             int           `mapstructure:"workers"`
	MinContainment      int           `mapstructure:"min_containment"`
}

// envBindings keeps the historical environment variable names working next to MATCHER_* keys.
var envBindings = map[string]string{
	"database.driver":         "DB_DRIVER",
	"database.dsn":            "DB_URL",
	"database.max_conns":      "DB_MAX_CONNS",
	"database.min_conns":      "DB_MIN_CONNS",
	"database.dial_timeout":   "DB_DIAL_TIMEOUT",
	"server.http_addr":        "HTTP_ADDR",
	"server.grpc_addr":        "GRPC_ADDR",
	"ocr.tesseract":           "TESSERACT_BIN",
	"ocr.language":            "OCR_LANG",
	"ocr.heic_converter":      "HEIC_CONVERTER",
	"ocr.tessdata_dir":        "TESSDATA_PREFIX",
	"ocr.remote_url":          "OCR_REMOTE_URL",
	"llm.model":               "OPENAI_MODEL",
	"llm.api_key":             "OPENAI_API_KEY",
	"llm.base_url":            "OPENAI_BASE_URL",
	"llm.temperature":         "OPENAI_TEMPERATURE",
	"llm.timeout":             "OPENAI_TIMEOUT",
	"matching.min_score":      "MIN_SCORE",
	"matching.trust_score":    "TRUST_SCORE",
	"matching.assist_timeout": "ASSIST_TIMEOUT",
}

// LoadConfig loads configuration from defaults, an optional config file and the environment.
// An empty path searches for config.yaml in the working directory and ./config.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("MATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "MATCHER_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "matcher.db")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.dial_timeout", "3s")
	v.SetDefault("database.statement_timeout", "0s")

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.max_upload_bytes", 20<<20)
	v.SetDefault("server.request_timeout", "2m")
	v.SetDefault("server.workers", 4)

	v.SetDefault("ocr.tesseract", "tesseract")
	v.SetDefault("ocr.pdftoppm", "pdftoppm")
	v.SetDefault("ocr.heic_converter", "magick")
	v.SetDefault("ocr.language", "rus+eng")
	v.SetDefault("ocr.dpi", 300)
	v.SetDefault("ocr.max_pages", 50)
	v.SetDefault("ocr.remote_timeout", "30s")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", "45s")
	v.SetDefault("llm.requests_per_minute", 60)

	v.SetDefault("matching.min_score", 50.0)
	v.SetDefault("matching.trust_score", 80.0)
	v.SetDefault("matching.assist_min_confidence", 50.0)
	v.SetDefault("matching.assist_timeout", "10s")
	v.SetDefault("matching.sample_size", 40)
	v.SetDefault("matching.workers", 1)
	v.SetDefault("matching.min_containment", 3)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("database driver must be sqlite or postgres, got %q", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}

	v := NewValidator().
		Field("matching.min_score", c.Matching.MinScore, InRange(0, 100)).
		Field("matching.trust_score", c.Matching.TrustScore, InRange(0, 100)).
		Field("matching.assist_min_confidence", c.Matching.AssistMinConfidence, InRange(0, 100)).
		Field("matching.sample_size", c.Matching.SampleSize, InRange(1, 1000))
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

// AssistEnabled reports whether an LLM key is configured.
func (c *Config) AssistEnabled() bool {
	return strings.TrimSpace(c.LLM.APIKey) != ""
}
