// Package config loads the service configuration from an optional config
// file, a .env file and TOWNCHAT_* environment variables.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the root of the service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Nats      NatsConfig      `mapstructure:"nats"`
	Bus       BusConfig       `mapstructure:"bus"`
	Session   SessionConfig   `mapstructure:"session"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Resources ResourcesConfig `mapstructure:"resources"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	Mode           string        `mapstructure:"mode"`
}

// AuthConfig describes how bearer tokens minted by the upstream identity
// service are verified.
type AuthConfig struct {
	Secret        string        `mapstructure:"secret"`
	Issuer        string        `mapstructure:"issuer"`
	IdentityClaim string        `mapstructure:"identity_claim"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type NatsConfig struct {
	URL      string `mapstructure:"url"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// BusConfig selects the fan-out backend: "memory", "redis" or "nats".
type BusConfig struct {
	Backend     string `mapstructure:"backend"`
	TopicPrefix string `mapstructure:"topic_prefix"`
}

type SessionConfig struct {
	AuthTimeout     time.Duration `mapstructure:"auth_timeout"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	MaxFrameSize    int64         `mapstructure:"max_frame_size"`
	CommandRate     float64       `mapstructure:"command_rate"`
	CommandBurst    int           `mapstructure:"command_burst"`
	DefaultPageSize int           `mapstructure:"default_page_size"`
	MaxPageSize     int           `mapstructure:"max_page_size"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
}

type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Prefix    string            `mapstructure:"prefix"`
	Level     string            `mapstructure:"level"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
}

type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourcesConfig points at the read-only sibling services whose records
// can be referenced from chat messages.
type ResourcesConfig struct {
	Timeout      time.Duration  `mapstructure:"timeout"`
	Retries      int            `mapstructure:"retries"`
	Backoff      time.Duration  `mapstructure:"backoff"`
	Product      ResourceConfig `mapstructure:"product"`
	Announcement ResourceConfig `mapstructure:"announcement"`
}

// ResourceConfig is one collaborator. ContentURL is a fmt template with a
// single %s for the resource id.
type ResourceConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	ContentURL string `mapstructure:"content_url"`
}

// Load reads configuration. configPath may be empty, in which case only
// defaults and the environment are used.
func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("WARNING: no .env file loaded")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TOWNCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	switch c.Bus.Backend {
	case "memory", "redis", "nats":
	default:
		return fmt.Errorf("unknown bus backend %q", c.Bus.Backend)
	}
	if c.Session.DefaultPageSize < 0 || c.Session.MaxPageSize < c.Session.DefaultPageSize {
		return fmt.Errorf("invalid page size limits: default %d, max %d",
			c.Session.DefaultPageSize, c.Session.MaxPageSize)
	}
	if c.Session.CommandRate < 0 || c.Session.CommandBurst < 0 {
		return fmt.Errorf("session.command_rate and session.command_burst must not be negative")
	}
	if c.Session.AuthTimeout <= 0 {
		return fmt.Errorf("session.auth_timeout must be positive")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.mode", "release")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.identity_claim", DefaultIdentityClaim)
	v.SetDefault("auth.leeway", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=user password=password dbname=townchat port=5432 sslmode=disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.log_level", "WARNING")
	v.SetDefault("database.slow_threshold", 200*time.Millisecond)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.user", "")
	v.SetDefault("nats.password", "")

	v.SetDefault("bus.backend", "redis")
	v.SetDefault("bus.topic_prefix", DefaultTopicPrefix)

	v.SetDefault("session.auth_timeout", DefaultAuthTimeout)
	v.SetDefault("session.send_buffer", DefaultSendBuffer)
	v.SetDefault("session.max_frame_size", DefaultMaxFrameSize)
	v.SetDefault("session.command_rate", DefaultCommandRate)
	v.SetDefault("session.command_burst", DefaultCommandBurst)
	v.SetDefault("session.default_page_size", DefaultPageSize)
	v.SetDefault("session.max_page_size", MaxPageSize)
	v.SetDefault("session.write_wait", DefaultWriteWait)
	v.SetDefault("session.pong_wait", DefaultPongWait)

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.prefix", "townchat")
	v.SetDefault("logger.level", "INFO")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)

	v.SetDefault("resources.timeout", DefaultResourceTimeout)
	v.SetDefault("resources.retries", 2)
	v.SetDefault("resources.backoff", 200*time.Millisecond)
	v.SetDefault("resources.product.base_url", "http://onlineshop-service:8000/api")
	v.SetDefault("resources.product.content_url", "https://api.kasanabozor.uz/onlineshop/api/message-product/%s/")
	v.SetDefault("resources.announcement.base_url", "http://announcements-service:8000/api")
	v.SetDefault("resources.announcement.content_url", "https://api.kasanabozor.uz/annoucements/api/announcement-data/%s/")
}
