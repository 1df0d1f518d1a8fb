// Package config loads service configuration from default.yaml and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// EnvDevelopment is the only environment that exposes webhook diagnostics
// unless webhook.exposeDiagnostics says otherwise.
const EnvDevelopment = "development"

// Config holds all configuration for the application.
type Config struct {
	Environment string          `mapstructure:"environment"`
	LogLevel    string          `mapstructure:"logLevel"`
	Server      ServerConfig    `mapstructure:"server"`
	JWT         JWTConfig       `mapstructure:"jwt"`
	RateLimit   RateLimitConfig `mapstructure:"rateLimit"`
	Tracing     TracingConfig   `mapstructure:"tracing"`
	Database    DatabaseConfig  `mapstructure:"database"`
	NATS        NATSConfig      `mapstructure:"nats"`
	Twilio      TwilioConfig    `mapstructure:"twilio"`
	Webhook     WebhookConfig   `mapstructure:"webhook"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	AllowedOrigins  []string      `mapstructure:"allowedOrigins"`
}

// JWTConfig holds the HS256 signing secret for operator tokens.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// RateLimitConfig limits authenticated API calls per organization.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// TracingConfig configures the OTLP exporter.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"serviceName"`
}

// DatabaseConfig selects and configures the storage driver.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	PostgresDSN     string        `mapstructure:"postgresDSN"`
	AutoMigrate     bool          `mapstructure:"autoMigrate"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

// NATSConfig configures the lifecycle event stream.
type NATSConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	URL            string        `mapstructure:"url"`
	CAFile         string        `mapstructure:"caFile"`
	CertFile       string        `mapstructure:"certFile"`
	KeyFile        string        `mapstructure:"keyFile"`
	Token          string        `mapstructure:"token"`
	PoolSize       int           `mapstructure:"poolSize"`
	PublishTimeout time.Duration `mapstructure:"publishTimeout"`
	StatsInterval  time.Duration `mapstructure:"statsInterval"`
}

// TwilioConfig holds carrier credentials. An empty AccountSID disables sending.
type TwilioConfig struct {
	AccountSID          string `mapstructure:"accountSID"`
	AuthToken           string `mapstructure:"authToken"`
	FromNumber          string `mapstructure:"fromNumber"`
	MessagingServiceSID string `mapstructure:"messagingServiceSID"`
}

// WebhookConfig configures the inbound webhook endpoints.
type WebhookConfig struct {
	Secret                  string        `mapstructure:"secret"`
	DedupWindow             time.Duration `mapstructure:"dedupWindow"`
	ExposeDiagnostics       bool          `mapstructure:"exposeDiagnostics"`
	ValidateTwilioSignature bool          `mapstructure:"validateTwilioSignature"`
	PublicBaseURL           string        `mapstructure:"publicBaseURL"`
}

// SMSEnabled reports whether carrier credentials are present.
func (c TwilioConfig) SMSEnabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

// Load reads configuration from default.yaml (if found) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("default")
	v.SetConfigType("yaml")
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("/etc/lead-automation")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, Config{})

	for env, key := range map[string]string{
		"PORT":               "server.port",
		"LOG_LEVEL":          "logLevel",
		"POSTGRES_DSN":       "database.postgresDSN",
		"NATS_URL":           "nats.url",
		"JWT_SECRET":         "jwt.secret",
		"WEBHOOK_SECRET":     "webhook.secret",
		"TWILIO_ACCOUNT_SID": "twilio.accountSID",
		"TWILIO_AUTH_TOKEN":  "twilio.authToken",
		"TWILIO_FROM_NUMBER": "twilio.fromNumber",
	} {
		if val := os.Getenv(env); val != "" {
			v.Set(key, val)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if !v.IsSet("webhook.exposeDiagnostics") {
		cfg.Webhook.ExposeDiagnostics = cfg.Environment == EnvDevelopment
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvDevelopment)
	v.SetDefault("logLevel", "info")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.shutdownTimeout", 30*time.Second)
	v.SetDefault("server.allowedOrigins", []string{"https://*", "http://*"})

	v.SetDefault("rateLimit.requests", 60)
	v.SetDefault("rateLimit.window", time.Minute)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.serviceName", "lead-automation")

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.autoMigrate", false)
	v.SetDefault("database.maxOpenConns", 20)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 30*time.Minute)

	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.poolSize", 16)
	v.SetDefault("nats.publishTimeout", 5*time.Second)
	v.SetDefault("nats.statsInterval", 30*time.Second)

	v.SetDefault("webhook.dedupWindow", 24*time.Hour)
	v.SetDefault("webhook.validateTwilioSignature", true)
}

// Validate checks settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Database.PostgresDSN == "" {
			return errors.New("database.postgresDSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret is required")
	}
	if c.Twilio.SMSEnabled() && c.Twilio.FromNumber == "" && c.Twilio.MessagingServiceSID == "" {
		return errors.New("twilio.fromNumber or twilio.messagingServiceSID is required")
	}
	if c.Webhook.ValidateTwilioSignature && c.Twilio.SMSEnabled() && c.Webhook.PublicBaseURL == "" {
		return errors.New("webhook.publicBaseURL is required to validate Twilio signatures")
	}
	return nil
}

// bindEnvs recursively binds environment variables to config struct fields.
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(append([]string{}, parts...), tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
