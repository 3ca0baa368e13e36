package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTPPort    string `yaml:"http_port"`
	MetricsPort string `yaml:"metrics_port"`
	LogLevel    string `yaml:"log_level"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisDB     int    `yaml:"redis_db"`
	GRPCServer  string `yaml:"grpc_server"` // collector de snapshots, vacío = deshabilitado
	ProxyAddr   string `yaml:"proxy_addr"`  // link NDJSON, vacío = deshabilitado
	AuditDir    string `yaml:"audit_dir"`

	CacheTTL       time.Duration `yaml:"cache_ttl"`
	MaxConcurrency int           `yaml:"max_concurrency"`
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`

	Flespi       FlespiConfig       `yaml:"flespi"`
	ThingsMobile ThingsMobileConfig `yaml:"things_mobile"`
	Phenix       PhenixConfig       `yaml:"phenix"`
	Truphone     TruphoneConfig     `yaml:"truphone"`
	SIV          SIVConfig          `yaml:"siv"`
}

type FlespiConfig struct {
	BaseURL string `yaml:"base_url"`
	Token   string `yaml:"token"`
}

type ThingsMobileConfig struct {
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Token    string `yaml:"token"`
}

type PhenixConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type TruphoneConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type SIVConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	DailyQuota int    `yaml:"daily_quota"`
}

func defaults() Config {
	return Config{
		HTTPPort:       "8080",
		MetricsPort:    "9000",
		LogLevel:       "info",
		RedisAddr:      "localhost:6379",
		AuditDir:       "logs",
		CacheTTL:       5 * time.Minute,
		MaxConcurrency: 4,
		RequestsPerSec: 5,
		HTTPTimeout:    20 * time.Second,
		Flespi:         FlespiConfig{BaseURL: "https://flespi.io"},
		ThingsMobile:   ThingsMobileConfig{BaseURL: "https://api.thingsmobile.com/services/business-api"},
		Phenix:         PhenixConfig{BaseURL: "https://api.phenix-partner.fr"},
		Truphone:       TruphoneConfig{BaseURL: "https://iot.truphone.com/api"},
		SIV:            SIVConfig{BaseURL: "https://api.autowaysnetwork.com", DailyQuota: 200},
	}
}

// Load arma la config: defaults, luego el YAML de SIMFLEET_CONFIG (si existe),
// y por último las variables de entorno, que siempre ganan.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("SIMFLEET_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnv("HTTP_PORT", c.HTTPPort)
	c.MetricsPort = getEnv("METRICS_PORT", c.MetricsPort)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.GRPCServer = getEnv("GRPC_SERVER", c.GRPCServer)
	c.ProxyAddr = getEnv("PROXY_ADDR", c.ProxyAddr)
	c.AuditDir = getEnv("AUDIT_DIR", c.AuditDir)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)
	c.MaxConcurrency = getEnvInt("MAX_CONCURRENCY", c.MaxConcurrency)
	c.RequestsPerSec = getEnvFloat("REQUESTS_PER_SEC", c.RequestsPerSec)
	c.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", c.HTTPTimeout)

	c.Flespi.BaseURL = getEnv("FLESPI_BASE_URL", c.Flespi.BaseURL)
	c.Flespi.Token = getEnv("FLESPI_TOKEN", c.Flespi.Token)
	c.ThingsMobile.BaseURL = getEnv("THINGSMOBILE_BASE_URL", c.ThingsMobile.BaseURL)
	c.ThingsMobile.Username = getEnv("THINGSMOBILE_USERNAME", c.ThingsMobile.Username)
	c.ThingsMobile.Token = getEnv("THINGSMOBILE_TOKEN", c.ThingsMobile.Token)
	c.Phenix.BaseURL = getEnv("PHENIX_BASE_URL", c.Phenix.BaseURL)
	c.Phenix.ClientID = getEnv("PHENIX_CLIENT_ID", c.Phenix.ClientID)
	c.Phenix.ClientSecret = getEnv("PHENIX_CLIENT_SECRET", c.Phenix.ClientSecret)
	c.Truphone.BaseURL = getEnv("TRUPHONE_BASE_URL", c.Truphone.BaseURL)
	c.Truphone.APIKey = getEnv("TRUPHONE_API_KEY", c.Truphone.APIKey)
	c.SIV.BaseURL = getEnv("SIV_BASE_URL", c.SIV.BaseURL)
	c.SIV.APIKey = getEnv("SIV_API_KEY", c.SIV.APIKey)
	c.SIV.DailyQuota = getEnvInt("SIV_DAILY_QUOTA", c.SIV.DailyQuota)
}

func (c Config) Validate() error {
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("requests_per_sec must be > 0, got %v", c.RequestsPerSec)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative")
	}
	return nil
}

// ThingsMobileEnabled y compañía reportan qué proveedores tienen credenciales.
func (c Config) ThingsMobileEnabled() bool {
	return c.ThingsMobile.Username != "" && c.ThingsMobile.Token != ""
}

func (c Config) PhenixEnabled() bool {
	return c.Phenix.ClientID != "" && c.Phenix.ClientSecret != ""
}

func (c Config) TruphoneEnabled() bool { return c.Truphone.APIKey != "" }

func (c Config) FlespiEnabled() bool { return c.Flespi.Token != "" }

func (c Config) SIVEnabled() bool { return c.SIV.APIKey != "" }

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
