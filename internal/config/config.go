// Package config provides configuration management for Courier.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	River      RiverConfig      `mapstructure:"river"`
	Security   SecurityConfig   `mapstructure:"security"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Digest     DigestConfig     `mapstructure:"digest"`
	Transports TransportsConfig `mapstructure:"transports"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// A single pgx pool is shared by the repositories and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// RedisConfig contains Redis connection settings. Redis holds the delivery
// cycle leader lock and cursor so only one instance drains the queue.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
}

// SecurityConfig contains security-related settings.
type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	JWTExpiration time.Duration `mapstructure:"jwt_expiration"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize  int `mapstructure:"general_pool_size"`
	DeliveryPoolSize int `mapstructure:"delivery_pool_size"`
}

// PipelineConfig contains delivery cycle settings.
type PipelineConfig struct {
	// CycleInterval is how often the delivery cycle job runs.
	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	// BatchSize bounds how many unprocessed records a cycle claims.
	BatchSize int `mapstructure:"batch_size"`
	// MaxAttempts is the retry ceiling; records exceeding it are skipped.
	MaxAttempts int `mapstructure:"max_attempts"`
	// SendTimeout bounds each individual transport call.
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	// LockTTL is the Redis leader lock lifetime; must exceed a worst-case cycle.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// RetentionPeriod is how long processed records are kept.
	RetentionPeriod time.Duration `mapstructure:"retention_period"`
}

// DigestConfig contains digest email scheduling settings.
type DigestConfig struct {
	DailyHourUTC int           `mapstructure:"daily_hour_utc"`
	MaxPerEmail  int           `mapstructure:"max_per_email"`
	MinUnreadAge time.Duration `mapstructure:"min_unread_age"`
}

// TransportsConfig groups provider credentials for the three channels.
type TransportsConfig struct {
	SNS      SNSConfig      `mapstructure:"sns"`
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
	WebPush  WebPushConfig  `mapstructure:"webpush"`
}

// SNSConfig contains AWS SNS mobile push settings.
type SNSConfig struct {
	Region                string `mapstructure:"region"`
	IOSApplicationARN     string `mapstructure:"ios_application_arn"`
	AndroidApplicationARN string `mapstructure:"android_application_arn"`
}

// SendGridConfig contains transactional email settings.
type SendGridConfig struct {
	APIKey      string `mapstructure:"api_key"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// WebPushConfig contains browser push (VAPID) settings.
type WebPushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"` // mailto: contact for push services
}

// Load reads configuration from file and environment variables.
// Standard environment variables without prefix: DATABASE_URL, SERVER_PORT,
// LOG_LEVEL. Nested config maps as pipeline.batch_size → PIPELINE_BATCH_SIZE.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/courier")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret must not be empty")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters")
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be positive")
	}
	if c.Pipeline.MaxAttempts <= 0 {
		return fmt.Errorf("pipeline.max_attempts must be positive")
	}
	if c.Pipeline.LockTTL <= c.Pipeline.CycleInterval {
		return fmt.Errorf("pipeline.lock_ttl must exceed pipeline.cycle_interval")
	}
	if c.Digest.DailyHourUTC < 0 || c.Digest.DailyHourUTC > 23 {
		return fmt.Errorf("digest.daily_hour_utc must be in [0, 23]")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database (shared pool)
	// Registered so DATABASE_URL is visible to Unmarshal (see security.jwt_secret).
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "courier")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "courier")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Redis
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")

	// Security
	// Register the key so AutomaticEnv-backed Unmarshal can see it; viper
	// only unmarshals keys known from defaults, config files, or binds.
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_expiration", "24h")

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 100)
	v.SetDefault("worker.delivery_pool_size", 50)

	// Pipeline
	v.SetDefault("pipeline.cycle_interval", "10s")
	v.SetDefault("pipeline.batch_size", 500)
	v.SetDefault("pipeline.max_attempts", 5)
	v.SetDefault("pipeline.send_timeout", "10s")
	v.SetDefault("pipeline.lock_ttl", "2m")
	v.SetDefault("pipeline.retention_period", "720h") // 30 days

	// Digest
	v.SetDefault("digest.daily_hour_utc", 15)
	v.SetDefault("digest.max_per_email", 50)
	v.SetDefault("digest.min_unread_age", "15m")
}
