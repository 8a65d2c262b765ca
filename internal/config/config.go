// Package config handles gateway configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LockdownPolicy decides when the engine's local filesystem is disabled
// after backends are attached.
type LockdownPolicy string

// Supported lockdown policies.
const (
	// LockdownDuckLakeRemote disables the local filesystem only when DuckLake
	// stores its data in R2.
	LockdownDuckLakeRemote LockdownPolicy = "ducklake-remote"
	// LockdownAnyRemote disables it whenever any remote backend is attached.
	LockdownAnyRemote LockdownPolicy = "any-remote"
	LockdownAlways    LockdownPolicy = "always"
	LockdownNever     LockdownPolicy = "never"
)

// ParseLockdownPolicy maps a LOCAL_FS_LOCKDOWN value to a policy. The empty
// string selects LockdownDuckLakeRemote.
func ParseLockdownPolicy(s string) (LockdownPolicy, error) {
	switch p := LockdownPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return LockdownDuckLakeRemote, nil
	case LockdownDuckLakeRemote, LockdownAnyRemote, LockdownAlways, LockdownNever:
		return p, nil
	default:
		return "", fmt.Errorf("unknown LOCAL_FS_LOCKDOWN policy %q", s)
	}
}

// IcebergConfig is the R2 Data Catalog (Iceberg REST) credential bundle.
type IcebergConfig struct {
	Token    string
	Endpoint string
	Catalog  string
}

// R2Config is the R2 object storage credential bundle used for DuckLake data files.
type R2Config struct {
	AccessKeyID     string
	SecretAccessKey string
	AccountID       string
	Bucket          string
}

// PostgresConfig is the DuckLake metadata catalog connection bundle.
type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Database string
}

// Config holds the gateway configuration. Credential bundles are nil unless
// every value of the bundle is present; partial bundles are ignored.
type Config struct {
	APIToken string // empty disables bearer auth on /query

	Iceberg  *IcebergConfig
	R2       *R2Config
	Postgres *PostgresConfig

	ListenAddr       string // HTTP listen address (default ":3000")
	LogLevel         string // debug, info, warn, error (default "info")
	LogFormat        string // json or text (default "json")
	ExtensionDir     string // directory holding *.duckdb_extension files; empty installs from the repository
	HomeDirectory    string // engine home/scratch directory (default "/tmp")
	DuckLakeDataPath string // local DuckLake data path used when R2 is not configured
	R2S3Endpoint     string // overrides the R2 S3 endpoint used by preflight probes
	Lockdown         LockdownPolicy
	PreflightChecks  bool

	// Rate limiting is disabled when RateLimitRPS is zero.
	RateLimitRPS   float64
	RateLimitBurst int

	// CORS is disabled when no origins are configured.
	CORSAllowedOrigins []string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AuthEnabled returns true when a shared API token is configured.
func (c *Config) AuthEnabled() bool {
	return c.APIToken != ""
}

// HasDuckLake returns true when the DuckLake metadata catalog can be attached.
func (c *Config) HasDuckLake() bool {
	return c.Postgres != nil
}

// LoadFromEnv loads configuration from environment variables.
// Every backend bundle is optional; the gateway can start with none.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		APIToken:         os.Getenv("API_TOKEN"),
		ListenAddr:       os.Getenv("LISTEN_ADDR"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        strings.ToLower(os.Getenv("LOG_FORMAT")),
		HomeDirectory:    os.Getenv("HOME_DIRECTORY"),
		DuckLakeDataPath: os.Getenv("DUCKLAKE_DATA_PATH"),
		R2S3Endpoint:     os.Getenv("R2_S3_ENDPOINT"),
		PreflightChecks:  parseBoolEnvDefault("PREFLIGHT_CHECKS", false),
	}

	cfg.ExtensionDir = "/app/extensions"
	if v, ok := os.LookupEnv("EXTENSION_DIR"); ok {
		cfg.ExtensionDir = strings.TrimSpace(v)
	}

	lockdown, err := ParseLockdownPolicy(os.Getenv("LOCAL_FS_LOCKDOWN"))
	if err != nil {
		return nil, err
	}
	cfg.Lockdown = lockdown

	cfg.Iceberg = loadIceberg()
	cfg.R2 = loadR2()
	cfg.Postgres = loadPostgres()

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = f
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_BURST %q", v)
		}
		cfg.RateLimitBurst = n
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":3000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
	}
	if cfg.HomeDirectory == "" {
		cfg.HomeDirectory = "/tmp"
	}
	if cfg.DuckLakeDataPath == "" {
		cfg.DuckLakeDataPath = "/tmp/ducklake/data"
	}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = int(cfg.RateLimitRPS * 2)
		if cfg.RateLimitBurst < 1 {
			cfg.RateLimitBurst = 1
		}
	}

	if !cfg.AuthEnabled() {
		cfg.Warnings = append(cfg.Warnings, "API_TOKEN not set: /query accepts unauthenticated requests")
	}
	if cfg.R2 != nil && cfg.Postgres == nil {
		cfg.Warnings = append(cfg.Warnings, "R2 credentials set without the POSTGRES_* bundle: DuckLake will not be attached")
	}
	if cfg.Postgres != nil && cfg.R2 == nil {
		cfg.Warnings = append(cfg.Warnings, "DuckLake attached without R2 credentials: data files use the local path "+cfg.DuckLakeDataPath)
	}

	return cfg, nil
}

func loadIceberg() *IcebergConfig {
	c := IcebergConfig{
		Token:    os.Getenv("R2_TOKEN"),
		Endpoint: os.Getenv("R2_ENDPOINT"),
		Catalog:  os.Getenv("R2_CATALOG"),
	}
	if !allSet(c.Token, c.Endpoint, c.Catalog) {
		return nil
	}
	return &c
}

func loadR2() *R2Config {
	c := R2Config{
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		Bucket:          os.Getenv("R2_BUCKET"),
	}
	if !allSet(c.AccessKeyID, c.SecretAccessKey, c.AccountID, c.Bucket) {
		return nil
	}
	return &c
}

func loadPostgres() *PostgresConfig {
	c := PostgresConfig{
		User:     os.Getenv("POSTGRES_USER"),
		Password: os.Getenv("POSTGRES_PASSWORD"),
		Host:     os.Getenv("POSTGRES_HOST"),
		Database: os.Getenv("POSTGRES_DB"),
	}
	if !allSet(c.User, c.Password, c.Host, c.Database) {
		return nil
	}
	return &c
}

func allSet(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}

func parseBoolEnvDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return defaultVal
	}
	if v == "0" || v == "false" || v == "no" || v == "off" {
		return false
	}
	if v == "1" || v == "true" || v == "yes" || v == "on" {
		return true
	}
	return defaultVal
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Env vars take precedence
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
