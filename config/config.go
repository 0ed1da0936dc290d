package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config Application Configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Events    EventsConfig    `mapstructure:"events"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mail      MailConfig      `mapstructure:"mail"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	AuthCode  AuthCodeConfig  `mapstructure:"auth_code"`
	Superuser SuperuserConfig `mapstructure:"superuser"`
	Files     FilesConfig     `mapstructure:"files"`
}

// AppConfig Application Configuration
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	Env     string `mapstructure:"env"` // development, staging, production
}

// DatabaseConfig Database Configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // memory, sqlite, mysql, postgres
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	Path            string        `mapstructure:"path"` // sqlite file, ":memory:" allowed
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	Retry           RetryConfig   `mapstructure:"retry"`
	Startup         StartupConfig `mapstructure:"startup"`
}

// RetryConfig Retry configuration for transient write failures
type RetryConfig struct {
	Enabled                       bool          `mapstructure:"enabled"`
	MaxAttempts                   int           `mapstructure:"max_attempts"`
	InitialDelay                  time.Duration `mapstructure:"initial_delay"`
	MaxDelay                      time.Duration `mapstructure:"max_delay"`
	BackoffFactor                 float64       `mapstructure:"backoff_factor"`
	JitterEnabled                 bool          `mapstructure:"jitter_enabled"`
	RetryOnConcurrentModification bool          `mapstructure:"retry_on_concurrent_modification"`
	RetryOnDeadlock               bool          `mapstructure:"retry_on_deadlock"`
	RetryOnLockTimeout            bool          `mapstructure:"retry_on_lock_timeout"`
}

// StartupConfig how long bootstrap waits for the database to come up
type StartupConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	Interval    time.Duration `mapstructure:"interval"`
}

// LogConfig Log Configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`  // debug, info, warn, error
	Format   string `mapstructure:"format"` // json, console
	Output   string `mapstructure:"output"` // stdout, file
	FilePath string `mapstructure:"file_path"`
}

// EventsConfig routes each aggregate type to a sender variant per kind.
type EventsConfig struct {
	Routes        map[string]EventRoute `mapstructure:"routes"` // keyed by aggregate type
	QueueKey      string                `mapstructure:"queue_key"`
	QueueMaxLen   int64                 `mapstructure:"queue_max_len"`
	QueueTimeout  time.Duration         `mapstructure:"queue_timeout"`
	QueueCapacity int                   `mapstructure:"queue_capacity"` // per repository
}

// EventRoute sender variant for each event kind: log, mail, queue or noop
type EventRoute struct {
	Created string `mapstructure:"created"`
	Updated string `mapstructure:"updated"`
}

// RedisConfig Redis connection for the queue sender
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// MailConfig SMTP delivery for the mail sender
type MailConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	Rate     float64       `mapstructure:"rate"` // messages per second
	Burst    int           `mapstructure:"burst"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WorkerConfig dispatch-failure redelivery worker
type WorkerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	BatchSize    int           `mapstructure:"batch_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	Rate         float64       `mapstructure:"rate"` // redeliveries per second
	ClaimLease   time.Duration `mapstructure:"claim_lease"`
}

// TelemetryConfig OpenTelemetry tracing
type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"` // stdout, none
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// AuthCodeConfig authentication code lifetime
type AuthCodeConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

// SuperuserConfig first admin account created at bootstrap
type SuperuserConfig struct {
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// FilesConfig public URL prefixes per file category
type FilesConfig struct {
	URLPrefixes map[string]string `mapstructure:"url_prefixes"`
}

// IsDevelopment Whether it's development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction Whether it's production environment
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Validate rejects combinations the application cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory", "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	for aggregate, route := range c.Events.Routes {
		for kind, variant := range map[string]string{"created": route.Created, "updated": route.Updated} {
			if err := c.checkSender(variant); err != nil {
				return fmt.Errorf("route %s.%s: %w", aggregate, kind, err)
			}
		}
	}
	if c.Worker.Enabled && c.Database.Driver == "memory" {
		return errors.New("the redelivery worker needs a relational database")
	}
	return nil
}

func (c *Config) checkSender(variant string) error {
	switch variant {
	case "", "log", "noop":
		return nil
	case "mail":
		if !c.Mail.Enabled {
			return errors.New("mail sender requires mail.enabled")
		}
		return nil
	case "queue":
		if !c.Redis.Enabled {
			return errors.New("queue sender requires redis.enabled")
		}
		return nil
	default:
		return fmt.Errorf("unknown sender %q", variant)
	}
}

// Load Load Configuration
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("RECORDHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Use default values when config file doesn't exist
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// setDefaults Set default configuration
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "recordhub")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "development")

	// Database
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "3306")
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "recordhub")
	v.SetDefault("database.path", "recordhub.db")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("database.retry.enabled", true)
	v.SetDefault("database.retry.max_attempts", 3)
	v.SetDefault("database.retry.initial_delay", "100ms")
	v.SetDefault("database.retry.max_delay", "2s")
	v.SetDefault("database.retry.backoff_factor", 2.0)
	v.SetDefault("database.retry.jitter_enabled", true)
	v.SetDefault("database.retry.retry_on_concurrent_modification", true)
	v.SetDefault("database.retry.retry_on_deadlock", true)
	v.SetDefault("database.retry.retry_on_lock_timeout", true)

	v.SetDefault("database.startup.max_attempts", 300)
	v.SetDefault("database.startup.interval", "1s")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "logs/app.log")

	// Events
	for _, aggregate := range []string{"user", "user_auth_code", "file"} {
		v.SetDefault("events.routes."+aggregate+".created", "log")
		v.SetDefault("events.routes."+aggregate+".updated", "log")
	}
	v.SetDefault("events.queue_key", "recordhub:events")
	v.SetDefault("events.queue_max_len", 100000)
	v.SetDefault("events.queue_timeout", "2s")
	v.SetDefault("events.queue_capacity", 1024)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Mail
	v.SetDefault("mail.enabled", false)
	v.SetDefault("mail.host", "localhost")
	v.SetDefault("mail.port", 25)
	v.SetDefault("mail.from", "no-reply@recordhub.local")
	v.SetDefault("mail.rate", 5)
	v.SetDefault("mail.burst", 10)
	v.SetDefault("mail.timeout", "10s")

	// Worker
	v.SetDefault("worker.enabled", false)
	v.SetDefault("worker.poll_interval", "5s")
	v.SetDefault("worker.batch_size", 50)
	v.SetDefault("worker.max_retries", 5)
	v.SetDefault("worker.rate", 20)
	v.SetDefault("worker.claim_lease", "5m")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.service_name", "recordhub")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("auth_code.ttl", "2m")

	v.SetDefault("superuser.email", "admin@recordhub.local")
	v.SetDefault("superuser.password", "")

	v.SetDefault("files.url_prefixes.avatar", "/images/avatar")
	v.SetDefault("files.url_prefixes.resume", "/resume")
}
