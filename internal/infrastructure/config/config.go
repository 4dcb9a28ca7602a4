package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Trigger       TriggerConfig
	Certification CertificationConfig
	Events        EventsConfig
	Auth          AuthConfig
	Log           LogConfig
	Telemetry     TelemetryConfig
}

// AppConfig holds application-level configuration
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	MaxHeaderBytes   int
	MaxUploadSize    int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string // postgres, memory
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
	MigrationsPath  string
}

// RedisConfig holds Redis configuration for the in-flight file guard
type RedisConfig struct {
	Enabled     bool
	Host        string
	Port        int
	Password    string
	DB          int
	KeyPrefix   string
	InFlightTTL time.Duration
}

// StorageConfig holds object storage configuration for claim files
type StorageConfig struct {
	Driver          string // s3, memory
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	IncomingPrefix  string
	ProcessedPrefix string
	SkippedPrefix   string
}

// TriggerConfig holds configuration for the file arrival poller
type TriggerConfig struct {
	Enabled            bool
	Schedule           string // cron expression, seconds optional
	MaxConcurrentFiles int
	TimeZone           string
}

// CertificationConfig holds limits applied to each file transaction
type CertificationConfig struct {
	LockTimeout time.Duration
	FileTimeout time.Duration
}

// EventsConfig holds result event publishing configuration
type EventsConfig struct {
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// AuthConfig holds configuration for admin route authentication
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsInterval   time.Duration
	DBTraceEnabled    bool
	DBSlowQueryThresh time.Duration
}

// Load loads configuration from config.toml and AFP_ prefixed environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("AFP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxUploadSize:    v.GetInt64("http.max_upload_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			MigrationsPath:  v.GetString("database.migrations_path"),
		},
		Redis: RedisConfig{
			Enabled:     v.GetBool("redis.enabled"),
			Host:        v.GetString("redis.host"),
			Port:        v.GetInt("redis.port"),
			Password:    v.GetString("redis.password"),
			DB:          v.GetInt("redis.db"),
			KeyPrefix:   v.GetString("redis.key_prefix"),
			InFlightTTL: v.GetDuration("redis.in_flight_ttl"),
		},
		Storage: StorageConfig{
			Driver:          v.GetString("storage.driver"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			IncomingPrefix:  v.GetString("storage.incoming_prefix"),
			ProcessedPrefix: v.GetString("storage.processed_prefix"),
			SkippedPrefix:   v.GetString("storage.skipped_prefix"),
		},
		Trigger: TriggerConfig{
			Enabled:            v.GetBool("trigger.enabled"),
			Schedule:           v.GetString("trigger.schedule"),
			MaxConcurrentFiles: v.GetInt("trigger.max_concurrent_files"),
			TimeZone:           v.GetString("trigger.time_zone"),
		},
		Certification: CertificationConfig{
			LockTimeout: v.GetDuration("certification.lock_timeout"),
			FileTimeout: v.GetDuration("certification.file_timeout"),
		},
		Events: EventsConfig{
			KafkaEnabled: v.GetBool("events.kafka_enabled"),
			KafkaBrokers: v.GetStringSlice("events.kafka_brokers"),
			KafkaTopic:   v.GetString("events.kafka_topic"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "afp-certifier"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 30 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 5 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 120 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxUploadSize == 0 {
		cfg.HTTP.MaxUploadSize = 20 << 20
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID"}
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "afp"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.MigrationsPath == "" {
		cfg.Database.MigrationsPath = "migrations"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "afp:inflight:"
	}
	if cfg.Redis.InFlightTTL == 0 {
		cfg.Redis.InFlightTTL = 15 * time.Minute
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Storage.Bucket == "" {
		cfg.Storage.Bucket = "afp-claims"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.IncomingPrefix == "" {
		cfg.Storage.IncomingPrefix = "raw/"
	}
	if cfg.Storage.ProcessedPrefix == "" {
		cfg.Storage.ProcessedPrefix = "processed/"
	}
	if cfg.Storage.SkippedPrefix == "" {
		cfg.Storage.SkippedPrefix = "skipped/"
	}

	if cfg.Trigger.Schedule == "" {
		cfg.Trigger.Schedule = "@every 30s"
	}
	if cfg.Trigger.MaxConcurrentFiles == 0 {
		cfg.Trigger.MaxConcurrentFiles = 4
	}
	if cfg.Trigger.TimeZone == "" {
		cfg.Trigger.TimeZone = "UTC"
	}

	if cfg.Certification.LockTimeout == 0 {
		cfg.Certification.LockTimeout = 10 * time.Second
	}
	if cfg.Certification.FileTimeout == 0 {
		cfg.Certification.FileTimeout = 5 * time.Minute
	}

	if cfg.Events.KafkaTopic == "" {
		cfg.Events.KafkaTopic = "claims.file.results"
	}

	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "afp-certifier"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	switch c.Storage.Driver {
	case "s3", "memory":
	default:
		return fmt.Errorf("storage.driver must be s3 or memory, got %q", c.Storage.Driver)
	}
	if c.Storage.IncomingPrefix == c.Storage.ProcessedPrefix || c.Storage.IncomingPrefix == c.Storage.SkippedPrefix {
		return fmt.Errorf("storage.incoming_prefix must differ from processed and skipped prefixes")
	}

	if c.Trigger.MaxConcurrentFiles < 1 {
		return fmt.Errorf("trigger.max_concurrent_files must be at least 1")
	}
	if c.Certification.LockTimeout < 0 || c.Certification.FileTimeout < 0 {
		return fmt.Errorf("certification timeouts cannot be negative")
	}
	if c.Certification.FileTimeout > 0 && c.Certification.LockTimeout > c.Certification.FileTimeout {
		return fmt.Errorf("certification.lock_timeout (%s) cannot exceed certification.file_timeout (%s)",
			c.Certification.LockTimeout, c.Certification.FileTimeout)
	}

	if c.Events.KafkaEnabled && len(c.Events.KafkaBrokers) == 0 {
		return fmt.Errorf("events.kafka_brokers is required when events.kafka_enabled is true")
	}

	if c.App.Env == "production" {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is required in production")
		}
		if len(c.Auth.JWTSecret) < 32 {
			return fmt.Errorf("auth.jwt_secret must be at least 32 characters in production")
		}
		if c.Database.Driver == "memory" {
			return fmt.Errorf("database.driver cannot be memory in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
