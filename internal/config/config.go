package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `json:"server" yaml:"server"`
	Service  ServiceConfig  `json:"service" yaml:"service"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Database DatabaseConfig `json:"database" yaml:"database"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Alerting AlertingConfig `json:"alerting" yaml:"alerting"`
	HTTP     HTTPConfig     `json:"http" yaml:"http"`
	DB       DBObsConfig    `json:"dbObservability" yaml:"dbObservability"`
}

type ServerConfig struct {
	BindAddr string `json:"bindAddr" yaml:"bindAddr"`
}

type ServiceConfig struct {
	Name string `json:"name" yaml:"name"`
	Env  string `json:"env" yaml:"env"`
}

type LoggingConfig struct {
	Level string `json:"level" yaml:"level"`
}

type DatabaseConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	DBName   string `json:"dbname" yaml:"dbname"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type AlertingConfig struct {
	CheckInterval string `json:"checkInterval" yaml:"checkInterval"` // e.g. "60s"
	WebhookURL    string `json:"webhookURL" yaml:"webhookURL"`
	RedisChannel  string `json:"redisChannel" yaml:"redisChannel"`
}

type HTTPConfig struct {
	SlowRequestThresholdMs int `json:"slowRequestThresholdMs" yaml:"slowRequestThresholdMs"`
}

type DBObsConfig struct {
	SlowQueryThresholdMs int  `json:"slowQueryThresholdMs" yaml:"slowQueryThresholdMs"`
	LogAllQueries        bool `json:"logAllQueries" yaml:"logAllQueries"`
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()
	return LoadFrom(*configFile)
}

// LoadFrom builds config from env defaults, then overlays the given file when set.
func LoadFrom(configFile string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:8080"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "lumina-api"),
			Env:  getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "lumina"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Alerting: AlertingConfig{
			CheckInterval: getEnv("ALERT_CHECK_INTERVAL", "60s"),
			WebhookURL:    getEnv("ALERT_WEBHOOK_URL", ""),
			RedisChannel:  getEnv("ALERT_REDIS_CHANNEL", "observability:alerts"),
		},
		HTTP: HTTPConfig{
			SlowRequestThresholdMs: getEnvInt("SLOW_REQUEST_THRESHOLD_MS", 3000),
		},
		DB: DBObsConfig{
			SlowQueryThresholdMs: getEnvInt("SLOW_QUERY_THRESHOLD_MS", 500),
			LogAllQueries:        getEnvBool("LOG_ALL_QUERIES", false),
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			log.Error().Err(err).Msg("failed to load config file")
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:8080"
	}
	if cfg.Service.Name == "" {
		cfg.Service.Name = "lumina-api"
	}
	if cfg.Service.Env == "" {
		cfg.Service.Env = "development"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Alerting.CheckInterval == "" {
		cfg.Alerting.CheckInterval = "60s"
	}
	if cfg.Alerting.RedisChannel == "" {
		cfg.Alerting.RedisChannel = "observability:alerts"
	}
	if cfg.HTTP.SlowRequestThresholdMs == 0 {
		cfg.HTTP.SlowRequestThresholdMs = 3000
	}
	if cfg.DB.SlowQueryThresholdMs == 0 {
		cfg.DB.SlowQueryThresholdMs = 500
	}

	return cfg, nil
}

// IsProduction reports whether the process runs with production hardening
// (PII masking, scrubbed error responses, no client IPs in logs).
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Service.Env, "production")
}

// IsDevelopment gates the debug-only observability endpoints.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Service.Env, "development")
}

// DSN returns the Postgres connection string, or "" when no DB host is configured.
func (c *Config) DSN() string {
	if c.Database.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// CheckInterval parses the alerting check interval, falling back to 60s.
func (c *Config) CheckInterval() time.Duration {
	return parseDuration(c.Alerting.CheckInterval, 60*time.Second)
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
		}
	}

	return nil
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
