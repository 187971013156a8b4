// Package config loads configuration from command-line flags, each
// defaulting to an environment variable.
package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/drivedav/drivedav/internal/drive"
)

// Config holds all drivedav configuration.
type Config struct {
	// Server
	Host        string
	Port        int
	MetricsAddr string // empty disables the metrics listener

	// Remote drive
	APIBaseURL string
	Cookie     string

	// WebDAV
	AuthUser         string
	AuthPassword     string
	AuthPasswordHash string // bcrypt, takes precedence over AuthPassword
	Root             string
	StripPrefix      string
	AutoIndex        bool
	ReadBufferSize   int

	// Directory cache
	CacheSize       int
	CacheShards     int
	CacheTTL        time.Duration
	PageSize        int
	RefreshInterval time.Duration // zero disables periodic invalidation

	// TLS (optional, both or neither)
	TLSCertFile string
	TLSKeyFile  string

	// Logging
	LogLevel  string
	LogFormat string
	Debug     bool
}

// Load parses args (without the program name) on top of environment
// defaults and validates the result.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	var cacheTTL, refresh int

	fs := flag.NewFlagSet("drivedav", flag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", envOr("HOST", "0.0.0.0"), "listen host")
	fs.IntVar(&cfg.Port, "port", envInt("PORT", 8080), "listen port")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envOr("METRICS_ADDR", ""), "Prometheus metrics listen address")
	fs.StringVar(&cfg.APIBaseURL, "api-base-url", envOr("QUARK_API_BASE_URL", drive.DefaultBaseURL), "drive API base URL")
	fs.StringVar(&cfg.Cookie, "quark-cookie", envOr("QUARK_COOKIE", ""), "drive session cookie (required)")
	fs.StringVar(&cfg.AuthUser, "auth-user", envOr("WEBDAV_AUTH_USER", ""), "WebDAV basic auth user")
	fs.StringVar(&cfg.AuthPassword, "auth-password", envOr("WEBDAV_AUTH_PASSWORD", ""), "WebDAV basic auth password")
	fs.StringVar(&cfg.AuthPasswordHash, "auth-password-hash", envOr("WEBDAV_AUTH_PASSWORD_HASH", ""), "WebDAV basic auth bcrypt password hash")
	fs.StringVar(&cfg.Root, "root", envOr("WEBDAV_ROOT", "/"), "drive folder served as the WebDAV root")
	fs.StringVar(&cfg.StripPrefix, "strip-prefix", envOr("WEBDAV_STRIP_PREFIX", ""), "URL prefix removed before path lookup")
	fs.BoolVar(&cfg.AutoIndex, "auto-index", envBool("AUTO_INDEX", false), "render HTML listings for GET on directories")
	fs.IntVar(&cfg.ReadBufferSize, "read-buffer-size", envInt("READ_BUFFER_SIZE", 10*1024*1024), "bytes fetched per remote read")
	fs.IntVar(&cfg.CacheSize, "cache-size", envInt("CACHE_SIZE", 1000), "maximum cached directory listings; each shard holds cache-size/cache-shards and evicts on its own")
	fs.IntVar(&cfg.CacheShards, "cache-shards", envInt("CACHE_SHARDS", 16), "directory cache shards, 1 for a single exact LRU")
	fs.IntVar(&cacheTTL, "cache-ttl", envInt("CACHE_TTL", 600), "seconds a directory listing may go unread before it expires")
	fs.IntVar(&cfg.PageSize, "page-size", envInt("PAGE_SIZE", 50), "entries requested per listing call")
	fs.IntVar(&refresh, "refresh-cache-secs-interval", envInt("REFRESH_CACHE_SECS_INTERVAL", 3600), "seconds between full cache invalidations, 0 to disable")
	fs.StringVar(&cfg.TLSCertFile, "tls-cert", envOr("TLS_CERT", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLSKeyFile, "tls-key", envOr("TLS_KEY", ""), "TLS private key file")
	fs.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOr("LOG_FORMAT", "json"), "log format: json or console")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG", false), "enable debug logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	cfg.CacheTTL = time.Duration(cacheTTL) * time.Second
	cfg.RefreshInterval = time.Duration(refresh) * time.Second
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required settings and settings that must come in pairs.
func (c *Config) Validate() error {
	if c.Cookie == "" {
		return errors.New("QUARK_COOKIE is required")
	}
	hasPassword := c.AuthPassword != "" || c.AuthPasswordHash != ""
	if (c.AuthUser != "") != hasPassword {
		return errors.New("auth user and password must be set together")
	}
	if (c.TLSCertFile != "") != (c.TLSKeyFile != "") {
		return errors.New("TLS cert and key must be set together")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.CacheShards <= 0 {
		return fmt.Errorf("cache shards must be positive, got %d", c.CacheShards)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %v", c.CacheTTL)
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("page size must be positive, got %d", c.PageSize)
	}
	if c.ReadBufferSize <= 0 {
		return fmt.Errorf("read buffer size must be positive, got %d", c.ReadBufferSize)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh interval must not be negative, got %v", c.RefreshInterval)
	}
	return nil
}

// ListenAddr returns the WebDAV listen address.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TLSEnabled reports whether the server should use HTTPS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// AuthEnabled reports whether WebDAV requests require basic auth.
func (c *Config) AuthEnabled() bool {
	return c.AuthUser != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
