// Package config loads runtime configuration from the environment and an
// optional .env file.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Audit sinks
const (
	AuditSinkLog      = "log"
	AuditSinkKafka    = "kafka"
	AuditSinkPostgres = "postgres"
)

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	MedicalAPIBase string        `mapstructure:"MEDICAL_API_BASE"`
	BackendTimeout time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	SessionIdleTTL time.Duration `mapstructure:"SESSION_IDLE_TTL"`
	APIKeys        []string      `mapstructure:"API_KEYS"`
	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	OTLPEndpoint   string        `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AuditSink      string        `mapstructure:"AUDIT_SINK"`
	KafkaBrokers   []string      `mapstructure:"KAFKA_BROKERS"`
	AuditTopic     string        `mapstructure:"AUDIT_TOPIC"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "MEDICAL_API_BASE", "BACKEND_TIMEOUT",
	"SESSION_IDLE_TTL", "API_KEYS", "CORS_ORIGINS", "OTEL_EXPORTER_OTLP_ENDPOINT",
	"AUDIT_SINK", "KAFKA_BROKERS", "AUDIT_TOPIC", "DATABASE_URL",
}

// Load reads configuration. envFile may be empty or missing.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	if envFile != "" {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MEDICAL_API_BASE", "http://localhost:8000/api")
	v.SetDefault("BACKEND_TIMEOUT", "30s")
	v.SetDefault("SESSION_IDLE_TTL", "30m")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("AUDIT_SINK", AuditSinkLog)
	v.SetDefault("KAFKA_BROKERS", "localhost:9092")
	v.SetDefault("AUDIT_TOPIC", "medguide.conversation.events")

	// Bind explicitly so Unmarshal sees env-only keys
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	if envFile != "" {
		_ = v.ReadInConfig()
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.APIKeys = splitList(cfg.APIKeys)
	cfg.CORSOrigins = splitList(cfg.CORSOrigins)
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers)
	cfg.AuditSink = strings.ToLower(strings.TrimSpace(cfg.AuditSink))

	return cfg, nil
}

// splitList normalises list values that may arrive as one comma-separated
// element
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	u, err := url.Parse(c.MedicalAPIBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("MEDICAL_API_BASE must be an absolute URL, got %q", c.MedicalAPIBase)
	}
	if c.BackendTimeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must not be negative")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be positive")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	switch c.AuditSink {
	case AuditSinkLog:
	case AuditSinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when AUDIT_SINK is %q", c.AuditSink)
		}
	case AuditSinkPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when AUDIT_SINK is %q", c.AuditSink)
		}
	default:
		return fmt.Errorf("AUDIT_SINK must be \"log\", \"kafka\", or \"postgres\", got %q", c.AuditSink)
	}
	if c.AuditSink != AuditSinkLog && c.AuditTopic == "" {
		return fmt.Errorf("AUDIT_TOPIC is required when AUDIT_SINK is %q", c.AuditSink)
	}
	return nil
}

// APIKeyClients maps each configured key to a client name. Entries may be
// "key" or "key=client".
func (c *Config) APIKeyClients() map[string]string {
	clients := make(map[string]string, len(c.APIKeys))
	for i, entry := range c.APIKeys {
		key, client, ok := strings.Cut(entry, "=")
		if !ok {
			client = fmt.Sprintf("client-%d", i+1)
		}
		clients[strings.TrimSpace(key)] = strings.TrimSpace(client)
	}
	return clients
}

// NewLogger builds a zap logger for the environment and level
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.IsDev() {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	if c.LogLevel != "" {
		lvl, err := zap.ParseAtomicLevel(c.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}
