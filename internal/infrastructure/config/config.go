package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Prefix for all environment variables, e.g. PAGESENSE_CACHE_DIR
const Prefix = "pagesense"

// Config holds all application configuration.
type Config struct {
	Server          ServerConfig          `yaml:"server" toml:"server"`
	Cache           CacheConfig           `yaml:"cache" toml:"cache"`
	LLM             LLMConfig             `yaml:"llm" toml:"llm"`
	OCR             OCRConfig             `yaml:"ocr" toml:"ocr"`
	Browser         BrowserConfig         `yaml:"browser" toml:"browser"`
	Extraction      ExtractionConfig      `yaml:"extraction" toml:"extraction"`
	CrossValidation CrossValidationConfig `yaml:"cross_validation" toml:"cross_validation"`
	Logging         LogConfig             `yaml:"logging" toml:"logging"`
}

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port        string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host        string   `envconfig:"HOST" yaml:"host" toml:"host"`
	CORSOrigins []string `envconfig:"CORS_ORIGINS" yaml:"cors_origins" toml:"cors_origins"`

	RateLimitRPS   int `envconfig:"RATE_LIMIT_RPS" yaml:"rate_limit_rps" toml:"rate_limit_rps"` // 0 disables
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST" yaml:"rate_limit_burst" toml:"rate_limit_burst"`
}

// CacheConfig holds understanding cache configuration.
type CacheConfig struct {
	Dir            string   `envconfig:"DIR" yaml:"dir" toml:"dir"`
	MemoryCapacity int      `envconfig:"MEMORY_CAPACITY" yaml:"memory_capacity" toml:"memory_capacity"`
	MaxAge         Duration `envconfig:"MAX_AGE" yaml:"max_age" toml:"max_age"`
	DomainCap      int      `envconfig:"DOMAIN_CAP" yaml:"domain_cap" toml:"domain_cap"`
	SweepThreshold int      `envconfig:"SWEEP_THRESHOLD" yaml:"sweep_threshold" toml:"sweep_threshold"`
}

// LLMConfig holds completion service configuration.
type LLMConfig struct {
	Provider    string   `envconfig:"PROVIDER" yaml:"provider" toml:"provider"` // "http" or "openai"
	BaseURL     string   `envconfig:"BASE_URL" yaml:"base_url" toml:"base_url"`
	APIKey      string   `envconfig:"API_KEY" yaml:"api_key" toml:"api_key"`
	Model       string   `envconfig:"MODEL" yaml:"model" toml:"model"`
	Timeout     Duration `envconfig:"TIMEOUT" yaml:"timeout" toml:"timeout"`
	RPS         float64  `envconfig:"RPS" yaml:"rps" toml:"rps"`
	MaxRetries  int      `envconfig:"MAX_RETRIES" yaml:"max_retries" toml:"max_retries"`
	Temperature float64  `envconfig:"TEMPERATURE" yaml:"temperature" toml:"temperature"`
}

// OCRConfig holds OCR service configuration.
type OCRConfig struct {
	Endpoint string   `envconfig:"ENDPOINT" yaml:"endpoint" toml:"endpoint"`
	Timeout  Duration `envconfig:"TIMEOUT" yaml:"timeout" toml:"timeout"`
}

// BrowserConfig holds live browser configuration.
type BrowserConfig struct {
	RemoteURL string   `envconfig:"REMOTE_URL" yaml:"remote_url" toml:"remote_url"`
	Headless  bool     `envconfig:"HEADLESS" yaml:"headless" toml:"headless"`
	Timeout   Duration `envconfig:"TIMEOUT" yaml:"timeout" toml:"timeout"` // fetch and navigation
}

// ExtractionConfig holds extraction engine tuning.
type ExtractionConfig struct {
	FallbackScale float64 `envconfig:"FALLBACK_SCALE" yaml:"fallback_scale" toml:"fallback_scale"`
	ProseMaxChars int     `envconfig:"PROSE_MAX_CHARS" yaml:"prose_max_chars" toml:"prose_max_chars"`
	LinkCap       int     `envconfig:"LINK_CAP" yaml:"link_cap" toml:"link_cap"`
}

// CrossValidationConfig holds OCR/DOM matching thresholds.
type CrossValidationConfig struct {
	OverlapThreshold     float64 `envconfig:"OVERLAP_THRESHOLD" yaml:"overlap_threshold" toml:"overlap_threshold"`
	AgreementBoost       float64 `envconfig:"AGREEMENT_BOOST" yaml:"agreement_boost" toml:"agreement_boost"`
	OCROnlyFloor         float64 `envconfig:"OCR_ONLY_FLOOR" yaml:"ocr_only_floor" toml:"ocr_only_floor"`
	DOMOnlyFloor         float64 `envconfig:"DOM_ONLY_FLOOR" yaml:"dom_only_floor" toml:"dom_only_floor"`
	PositionTolerancePx  float64 `envconfig:"POSITION_TOLERANCE_PX" yaml:"position_tolerance_px" toml:"position_tolerance_px"`
	PositionTolerancePct float64 `envconfig:"POSITION_TOLERANCE_PCT" yaml:"position_tolerance_pct" toml:"position_tolerance_pct"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"DEV" yaml:"development" toml:"development"`
}

// Load loads configuration from environment variables on top of defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML or TOML file on the defaults, then applies
// environment variables. The format is picked by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := envconfig.Process(Prefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			CORSOrigins: []string{"*"},

			RateLimitRPS:   20,
			RateLimitBurst: 40,
		},
		Cache: CacheConfig{
			Dir:            "cache/page_understanding",
			MemoryCapacity: 100,
			MaxAge:         Duration(24 * time.Hour),
			DomainCap:      50,
			SweepThreshold: 100,
		},
		LLM: LLMConfig{
			Provider:    "http",
			BaseURL:     "http://localhost:8080/v1",
			Model:       "gpt-4o-mini",
			Timeout:     Duration(60 * time.Second),
			RPS:         5,
			MaxRetries:  3,
			Temperature: 0.1,
		},
		OCR: OCRConfig{
			Timeout: Duration(30 * time.Second),
		},
		Browser: BrowserConfig{
			Headless: true,
			Timeout:  Duration(30 * time.Second),
		},
		Extraction: ExtractionConfig{
			FallbackScale: 0.7,
			ProseMaxChars: 12000,
			LinkCap:       50,
		},
		CrossValidation: CrossValidationConfig{
			OverlapThreshold:     0.3,
			AgreementBoost:       0.15,
			OCROnlyFloor:         0.60,
			DOMOnlyFloor:         0.70,
			PositionTolerancePx:  50,
			PositionTolerancePct: 0.05,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate rejects unusable capacities and thresholds.
func (c *Config) Validate() error {
	switch {
	case c.Cache.MemoryCapacity <= 0:
		return fmt.Errorf("cache memory capacity must be positive, got %d", c.Cache.MemoryCapacity)
	case c.Cache.DomainCap <= 0:
		return fmt.Errorf("cache domain cap must be positive, got %d", c.Cache.DomainCap)
	case c.Cache.MaxAge <= 0:
		return fmt.Errorf("cache max age must be positive, got %s", c.Cache.MaxAge)
	case c.LLM.Provider != "http" && c.LLM.Provider != "openai":
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	case c.Extraction.FallbackScale <= 0 || c.Extraction.FallbackScale > 1:
		return fmt.Errorf("fallback scale must be in (0, 1], got %v", c.Extraction.FallbackScale)
	case c.Extraction.ProseMaxChars <= 0:
		return fmt.Errorf("prose max chars must be positive, got %d", c.Extraction.ProseMaxChars)
	}

	cv := c.CrossValidation
	for name, v := range map[string]float64{
		"overlap threshold": cv.OverlapThreshold,
		"agreement boost":   cv.AgreementBoost,
		"ocr-only floor":    cv.OCROnlyFloor,
		"dom-only floor":    cv.DOMOnlyFloor,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// Addr returns the admin server listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
