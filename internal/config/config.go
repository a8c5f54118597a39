package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Auth       AuthConfig       `mapstructure:"auth"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Log        LogConfig        `mapstructure:"log"`
	Pagination PaginationConfig `mapstructure:"pagination"`
}

type AppConfig struct {
	Name       string `mapstructure:"name"`
	Version    string `mapstructure:"version"`
	URL        string `mapstructure:"url"`
	Key        string `mapstructure:"key"` // signs email verification links
	Repository string `mapstructure:"repository"`
}

type ServerConfig struct {
	Port   int    `mapstructure:"port"`
	Prefix string `mapstructure:"prefix"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwt_secret"`
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	VerifyTTL         time.Duration `mapstructure:"verify_ttl"`
	SeedAdminPassword string        `mapstructure:"seed_admin_password"`
}

type RateLimitConfig struct {
	VerifyMax    int           `mapstructure:"verify_max"`
	VerifyWindow time.Duration `mapstructure:"verify_window"`
	RedisAddr    string        `mapstructure:"redis_addr"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

type PaginationConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.IsSQLite() {
		if d.Name == ":memory:" {
			return "file::memory:?cache=shared"
		}
		if strings.HasPrefix(d.Name, "file:") {
			return d.Name
		}
		return d.Path + "/" + d.Name + ".db"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "sqlite"
}

// Load reads app.yaml (optional), .env (optional) and the environment.
// An explicit path, when non-empty, must exist.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("app")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("../..")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Task Manager API")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.url", "http://localhost:8080")
	v.SetDefault("app.key", "changeme-app-key")
	v.SetDefault("app.repository", "https://github.com/nacastroc/task-manager-api")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.prefix", "/api")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "task_manager")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.path", "./data")
	v.SetDefault("auth.jwt_secret", "changeme-secret")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.verify_ttl", 60*time.Minute)
	v.SetDefault("auth.seed_admin_password", "changeme")
	v.SetDefault("ratelimit.verify_max", 6)
	v.SetDefault("ratelimit.verify_window", time.Minute)
	v.SetDefault("ratelimit.redis_addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("pagination.default_per_page", 10)
}
