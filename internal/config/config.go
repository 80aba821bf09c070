package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/advisor-guard/internal/infra/db"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
	Model     ModelConfig     `yaml:"model" mapstructure:"model"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Settings  SettingsConfig  `yaml:"settings" mapstructure:"settings"`
	Minio     MinioConfig     `yaml:"minio" mapstructure:"minio"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Port             int `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	IdleTimeoutSecs  int `yaml:"idle_timeout_secs" mapstructure:"idle_timeout_secs"`
}

// DatabaseConfig selects the directory, metrics and audit backend. DSN wins
// over the discrete fields when set.
type DatabaseConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Name     string `yaml:"name" mapstructure:"name"`
	Migrate  bool   `yaml:"migrate" mapstructure:"migrate"`

	MaxOpenConns        int `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns        int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMins int `yaml:"conn_max_lifetime_mins" mapstructure:"conn_max_lifetime_mins"`
}

// MetricsConfig picks the official metrics source: "database" reads the
// performance_metrics table, "http" calls the reporting API.
type MetricsConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

type ModelConfig struct {
	Provider    string `yaml:"provider" mapstructure:"provider"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	Name        string `yaml:"name" mapstructure:"name"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

type AuditConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// SettingsConfig points at the prompt and validation settings file.
type SettingsConfig struct {
	Path    string `yaml:"path" mapstructure:"path"`
	TTLSecs int    `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

type MinioConfig struct {
	Enabled    bool   `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey  string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey  string `yaml:"secret_key" mapstructure:"secret_key"`
	BucketName string `yaml:"bucket_name" mapstructure:"bucket_name"`
	Region     string `yaml:"region" mapstructure:"region"`
	UseSSL     bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// AuthConfig maps user IDs to API keys.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys" mapstructure:"api_keys"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" mapstructure:"per_second"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads path (or ./config.yaml when path is empty and the file exists),
// then GUARD_* environment overrides, e.g. GUARD_MODEL_API_KEY.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("GUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 200)
	v.SetDefault("server.idle_timeout_secs", 60)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 0)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "advisor_guard")
	v.SetDefault("database.migrate", true)
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime_mins", 30)
	v.SetDefault("metrics.provider", "database")
	v.SetDefault("metrics.base_url", "")
	v.SetDefault("metrics.token", "")
	v.SetDefault("metrics.timeout_secs", 10)
	v.SetDefault("model.provider", "openai")
	v.SetDefault("model.api_key", "")
	v.SetDefault("model.name", "")
	v.SetDefault("model.base_url", "")
	v.SetDefault("model.timeout_secs", 180)
	v.SetDefault("audit.timeout_secs", 5)
	v.SetDefault("settings.path", "guard-settings.yaml")
	v.SetDefault("settings.ttl_secs", 300)
	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket_name", "advisor-guard-audit")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("rate_limit.per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return eris.Errorf("config: database.driver %q must be mysql, postgres or sqlite", c.Database.Driver)
	}
	switch c.Metrics.Provider {
	case "database":
	case "http":
		if c.Metrics.BaseURL == "" {
			return eris.New("config: metrics.base_url is required for the http provider")
		}
	default:
		return eris.Errorf("config: metrics.provider %q must be database or http", c.Metrics.Provider)
	}
	switch c.Model.Provider {
	case "openai", "anthropic":
	default:
		return eris.Errorf("config: model.provider %q must be openai or anthropic", c.Model.Provider)
	}
	if c.RateLimit.PerSecond <= 0 {
		return eris.New("config: rate_limit.per_second must be positive")
	}
	return nil
}

// DSN builds the connection string for the configured driver.
func (c *Config) DSN() string {
	d := c.Database
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		return c.MySQLDSN()
	case "postgres":
		port := d.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			d.Host, port, d.User, d.Password, d.Name)
	}
	return d.Name + ".db"
}

// DBOptions maps the database section onto db.Open.
func (c *Config) DBOptions() db.Options {
	return db.Options{
		Driver:          c.Database.Driver,
		DSN:             c.DSN(),
		Migrate:         c.Database.Migrate,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(c.Database.ConnMaxLifetimeMins) * time.Minute,
	}
}

// MySQLDSN builds the go-sql-driver DSN from the discrete fields.
func (c *Config) MySQLDSN() string {
	port := c.Database.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		port,
		c.Database.Name,
	)
}

func Seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// Path returns CONFIG_PATH when set.
func Path() string {
	return os.Getenv("CONFIG_PATH")
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
