package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the bridge's full runtime configuration, sourced from the
// environment.
type Config struct {
	ListenAddr  string
	ExternalURL string

	DatabasePath string

	// SealboxKeyFile points at the master key for payload encryption.
	// When empty the BRIDGE_SEALBOX_KEY env variable is tried; in dev
	// mode a missing key falls back to an ephemeral one.
	SealboxKeyFile string
	DevMode        bool

	UpstreamClientID     string
	UpstreamClientSecret string
	UpstreamAuthorizeURL string
	UpstreamTokenURL     string
	UpstreamJWKSURL      string
	UpstreamIssuer       string
	UpstreamAudience     string
	UpstreamScopes       []string
	UpstreamTimeout      time.Duration

	// AdminToken gates the client admin endpoints; empty disables them.
	AdminToken string

	AllowLoopbackRedirects bool
	RedirectWildcardPrefix string

	HousekeepingInterval time.Duration

	LogLevel  string
	LogFormat string

	EnableDocs bool

	RateLimitStrictRPS   float64
	RateLimitModerateRPS float64
	RateLimitLenientRPS  float64
}

// sealboxKeyEnv names the env variable carrying inline key material.
const sealboxKeyEnv = "BRIDGE_SEALBOX_KEY"

// LoadConfig reads configuration from the environment, applying defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ListenAddr:  getEnvOrDefault("BRIDGE_LISTEN_ADDR", ":8080"),
		ExternalURL: getEnvOrDefault("BRIDGE_EXTERNAL_URL", "http://localhost:8080"),

		DatabasePath: getEnvOrDefault("BRIDGE_DB_PATH", "bridge.db"),

		SealboxKeyFile: os.Getenv("BRIDGE_SEALBOX_KEY_FILE"),
		DevMode:        getEnvBool("BRIDGE_DEV_MODE", false),

		UpstreamClientID:     os.Getenv("BRIDGE_UPSTREAM_CLIENT_ID"),
		UpstreamClientSecret: os.Getenv("BRIDGE_UPSTREAM_CLIENT_SECRET"),
		UpstreamAuthorizeURL: os.Getenv("BRIDGE_UPSTREAM_AUTHORIZE_URL"),
		UpstreamTokenURL:     os.Getenv("BRIDGE_UPSTREAM_TOKEN_URL"),
		UpstreamJWKSURL:      os.Getenv("BRIDGE_UPSTREAM_JWKS_URL"),
		UpstreamIssuer:       os.Getenv("BRIDGE_UPSTREAM_ISSUER"),
		UpstreamAudience:     os.Getenv("BRIDGE_UPSTREAM_AUDIENCE"),
		UpstreamScopes:       splitList(getEnvOrDefault("BRIDGE_UPSTREAM_SCOPES", "openid profile offline_access")),
		UpstreamTimeout:      getEnvDuration("BRIDGE_UPSTREAM_TIMEOUT", 10*time.Second),

		AdminToken: os.Getenv("BRIDGE_ADMIN_TOKEN"),

		AllowLoopbackRedirects: getEnvBool("BRIDGE_ALLOW_LOOPBACK_REDIRECTS", true),
		RedirectWildcardPrefix: os.Getenv("BRIDGE_REDIRECT_WILDCARD_PREFIX"),

		HousekeepingInterval: getEnvDuration("BRIDGE_HOUSEKEEPING_INTERVAL", 5*time.Minute),

		LogLevel:  getEnvOrDefault("BRIDGE_LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("BRIDGE_LOG_FORMAT", "json"),

		EnableDocs: getEnvBool("BRIDGE_ENABLE_DOCS", false),

		RateLimitStrictRPS:   getEnvFloat("BRIDGE_RATELIMIT_STRICT_RPS", 0),
		RateLimitModerateRPS: getEnvFloat("BRIDGE_RATELIMIT_MODERATE_RPS", 0),
		RateLimitLenientRPS:  getEnvFloat("BRIDGE_RATELIMIT_LENIENT_RPS", 0),
	}

	if cfg.UpstreamClientID == "" {
		return nil, fmt.Errorf("BRIDGE_UPSTREAM_CLIENT_ID is required")
	}
	if cfg.UpstreamAuthorizeURL == "" || cfg.UpstreamTokenURL == "" {
		return nil, fmt.Errorf("BRIDGE_UPSTREAM_AUTHORIZE_URL and BRIDGE_UPSTREAM_TOKEN_URL are required")
	}
	if cfg.UpstreamJWKSURL == "" {
		return nil, fmt.Errorf("BRIDGE_UPSTREAM_JWKS_URL is required")
	}
	if !cfg.DevMode && cfg.SealboxKeyFile == "" && os.Getenv(sealboxKeyEnv) == "" {
		return nil, fmt.Errorf("a sealbox key is required outside dev mode: set BRIDGE_SEALBOX_KEY_FILE or %s", sealboxKeyEnv)
	}
	return cfg, nil
}

// CallbackURL is the single redirect URI registered at the provider.
func (c *Config) CallbackURL() string {
	return strings.TrimRight(c.ExternalURL, "/") + "/callback"
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(s string) []string {
	fields := strings.Fields(strings.ReplaceAll(s, ",", " "))
	if len(fields) == 0 {
		return nil
	}
	return fields
}
