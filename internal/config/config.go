package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MinSessionSecretLength is the minimum accepted length of SESSION_SECRET.
const MinSessionSecretLength = 32

// Config aggregates all runtime settings required by the application.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http" toml:"http"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Session   SessionConfig   `yaml:"session" toml:"session"`
	Logger    LoggerConfig    `yaml:"logger" toml:"logger"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" toml:"host"`
	Port            string        `yaml:"port" toml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" toml:"write_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout" toml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver" toml:"driver"`
	DSN          string `yaml:"dsn" toml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns" toml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns" toml:"max_idle_conns"`
}

type SessionConfig struct {
	Secret       string        `yaml:"secret" toml:"secret"`
	TTL          time.Duration `yaml:"ttl" toml:"ttl"`
	SecureCookie bool          `yaml:"secure_cookie" toml:"secure_cookie"`
}

type LoggerConfig struct {
	Level    string `yaml:"level" toml:"level"`
	Encoding string `yaml:"encoding" toml:"encoding"`
}

type RateLimitConfig struct {
	Limit  int           `yaml:"limit" toml:"limit"`
	Window time.Duration `yaml:"window" toml:"window"`
	// TrustedProxies lists the addresses or CIDR ranges whose
	// X-Forwarded-For header is believed. Empty means none.
	TrustedProxies []string `yaml:"trusted_proxies" toml:"trusted_proxies"`
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address is treated as a
// single-host range.
func (c RateLimitConfig) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(c.TrustedProxies))
	for _, entry := range c.TrustedProxies {
		entry = strings.TrimSpace(entry)
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Host:            "0.0.0.0",
			Port:            "5000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			RequestTimeout:  5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite3",
			DSN:          "file:tasks.db?_busy_timeout=5000&_journal_mode=WAL",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		Session: SessionConfig{
			TTL: 24 * time.Hour,
		},
		Logger: LoggerConfig{
			Level:    "info",
			Encoding: "json",
		},
		RateLimit: RateLimitConfig{
			// allow max 5 login attempts per 15 minutes from the same IP
			Limit:  5,
			Window: 15 * time.Minute,
		},
	}
}

// Load reads configuration from an optional CONFIG_FILE (YAML or TOML), then
// from environment variables (optionally .env), which take precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Host = getString("SERVER_HOST", cfg.HTTP.Host)
	cfg.HTTP.Port = getString("SERVER_PORT", cfg.HTTP.Port)
	cfg.HTTP.ReadTimeout = getDuration("SERVER_READ_TIMEOUT", cfg.HTTP.ReadTimeout)
	cfg.HTTP.WriteTimeout = getDuration("SERVER_WRITE_TIMEOUT", cfg.HTTP.WriteTimeout)
	cfg.HTTP.RequestTimeout = getDuration("REQUEST_TIMEOUT", cfg.HTTP.RequestTimeout)
	cfg.HTTP.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT", cfg.HTTP.ShutdownTimeout)

	cfg.Database.Driver = getString("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.DSN = getString("DB_DSN", cfg.Database.DSN)
	cfg.Database.MaxOpenConns = getInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.Session.Secret = getString("SESSION_SECRET", cfg.Session.Secret)
	cfg.Session.TTL = getDuration("SESSION_TTL", cfg.Session.TTL)
	cfg.Session.SecureCookie = getBool("SESSION_SECURE_COOKIE", cfg.Session.SecureCookie)

	cfg.Logger.Level = getString("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Encoding = getString("LOG_ENCODING", cfg.Logger.Encoding)

	cfg.RateLimit.Limit = getInt("LOGIN_RATE_LIMIT", cfg.RateLimit.Limit)
	cfg.RateLimit.Window = getDuration("LOGIN_RATE_WINDOW", cfg.RateLimit.Window)
	cfg.RateLimit.TrustedProxies = getList("TRUSTED_PROXIES", cfg.RateLimit.TrustedProxies)
}

// Validate reports every setting the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("SERVER_PORT must be set"))
	}
	if c.HTTP.RequestTimeout <= 0 || c.HTTP.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT and SHUTDOWN_TIMEOUT must be positive"))
	}
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, errors.New("DB_DSN must be set"))
	}
	if len(c.Session.Secret) < MinSessionSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", MinSessionSecretLength))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.RateLimit.Limit <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT and LOGIN_RATE_WINDOW must be positive"))
	}
	if _, err := c.RateLimit.TrustedProxyPrefixes(); err != nil {
		errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	return errors.Join(errs...)
}

// Address returns the HTTP listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}
