package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App           AppSettings          `mapstructure:"app"`
	Store         StoreSettings        `mapstructure:"store"`
	Postgres      PostgresSettings     `mapstructure:"postgres"`
	Redis         RedisSettings        `mapstructure:"redis"`
	Kafka         KafkaSettings        `mapstructure:"kafka"`
	Auth          AuthSettings         `mapstructure:"auth"`
	Telemetry     TelemetrySettings    `mapstructure:"telemetry"`
	Notifications NotificationSettings `mapstructure:"notifications"`
}

type AppSettings struct {
	Name           string   `mapstructure:"name"`
	Env            string   `mapstructure:"env"`
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreSettings selects the document store backend and bounds non-blocking writes.
type StoreSettings struct {
	Driver       string        `mapstructure:"driver"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the change feed and snapshot cache connection
type RedisSettings struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	DB            int           `mapstructure:"db"`
	Password      string        `mapstructure:"password"`
	TLSEnabled    bool          `mapstructure:"tls_enabled"`
	ChannelPrefix string        `mapstructure:"channel_prefix"`
	CachePrefix   string        `mapstructure:"cache_prefix"`
	SnapshotTTL   time.Duration `mapstructure:"snapshot_ttl"`
}

// KafkaSettings configures the audit producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
	Async       bool     `mapstructure:"async"`
}

// AuthSettings configures identity token verification.
type AuthSettings struct {
	KeyDirectory string        `mapstructure:"key_directory"`
	Issuer       string        `mapstructure:"issuer"`
	Audience     string        `mapstructure:"audience"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
	Enabled      bool    `mapstructure:"enabled"`
}

// NotificationSettings bounds the toast history kept for the admin UI.
type NotificationSettings struct {
	HistorySize int `mapstructure:"history_size"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("STUDIO")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.allowed_origins",
		"store.driver",
		"store.write_timeout",
		"store.drain_timeout",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.channel_prefix",
		"redis.cache_prefix",
		"redis.snapshot_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.async",
		"auth.key_directory",
		"auth.issuer",
		"auth.audience",
		"auth.token_ttl",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"telemetry.enabled",
		"notifications.history_size",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the application cannot start with.
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory, StoreDriverRemote:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("store.write_timeout must be positive")
	}
	return nil
}

const (
	StoreDriverMemory = "memory"
	StoreDriverRemote = "remote"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "studio-admin")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("store.driver", StoreDriverMemory)
	v.SetDefault("store.write_timeout", "10s")
	v.SetDefault("store.drain_timeout", "5s")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "studio")
	v.SetDefault("postgres.password", "studio_password")
	v.SetDefault("postgres.database", "studio")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.channel_prefix", "studio:changes")
	v.SetDefault("redis.cache_prefix", "studio:doc")
	v.SetDefault("redis.snapshot_ttl", "5m")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "studio")
	v.SetDefault("kafka.async", true)

	v.SetDefault("auth.key_directory", "./secrets")
	v.SetDefault("auth.issuer", "studio")
	v.SetDefault("auth.audience", "studio-admin")
	v.SetDefault("auth.token_ttl", "1h")

	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "studio-admin")
	v.SetDefault("telemetry.sampling_rate", 1.0)
	v.SetDefault("telemetry.enabled", false)

	v.SetDefault("notifications.history_size", 50)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "STUDIO_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
