package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bundleVars = []string{
	"API_TOKEN",
	"R2_TOKEN", "R2_ENDPOINT", "R2_CATALOG",
	"R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_ACCOUNT_ID", "R2_BUCKET",
	"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_HOST", "POSTGRES_DB",
	"LISTEN_ADDR", "LOG_LEVEL", "LOG_FORMAT", "HOME_DIRECTORY", "DUCKLAKE_DATA_PATH",
	"LOCAL_FS_LOCKDOWN", "PREFLIGHT_CHECKS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"CORS_ALLOWED_ORIGINS", "R2_S3_ENDPOINT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range bundleVars {
		t.Setenv(k, "")
	}
}

func setDuckLakeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("R2_ACCESS_KEY_ID", "key")
	t.Setenv("R2_SECRET_ACCESS_KEY", "secret")
	t.Setenv("R2_ACCOUNT_ID", "account")
	t.Setenv("R2_BUCKET", "bucket")
	t.Setenv("POSTGRES_USER", "lake")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_HOST", "db.example.com")
	t.Setenv("POSTGRES_DB", "lakedb")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Nil(t, cfg.Iceberg)
	assert.Nil(t, cfg.R2)
	assert.Nil(t, cfg.Postgres)
	assert.False(t, cfg.AuthEnabled())
	assert.False(t, cfg.HasDuckLake())
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, "/tmp", cfg.HomeDirectory)
	assert.Equal(t, "/tmp/ducklake/data", cfg.DuckLakeDataPath)
	assert.Equal(t, LockdownDuckLakeRemote, cfg.Lockdown)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.False(t, cfg.PreflightChecks)
	assert.Zero(t, cfg.RateLimitRPS)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.Contains(t, cfg.Warnings, "API_TOKEN not set: /query accepts unauthenticated requests")
}

func TestLoadFromEnv_FullBundles(t *testing.T) {
	clearEnv(t)
	setDuckLakeEnv(t)
	t.Setenv("API_TOKEN", "tok")
	t.Setenv("R2_TOKEN", "catalog-token")
	t.Setenv("R2_ENDPOINT", "https://catalog.example.com")
	t.Setenv("R2_CATALOG", "acct_bucket")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	require.NotNil(t, cfg.Iceberg)
	assert.Equal(t, "acct_bucket", cfg.Iceberg.Catalog)
	require.NotNil(t, cfg.R2)
	assert.Equal(t, "bucket", cfg.R2.Bucket)
	require.NotNil(t, cfg.Postgres)
	assert.Equal(t, "lakedb", cfg.Postgres.Database)
	assert.True(t, cfg.AuthEnabled())
	assert.True(t, cfg.HasDuckLake())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_PartialBundlesAreAbsent(t *testing.T) {
	tests := []struct {
		name  string
		set   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "iceberg missing catalog",
			set:  map[string]string{"R2_TOKEN": "t", "R2_ENDPOINT": "e"},
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.Iceberg)
			},
		},
		{
			name: "r2 missing bucket",
			set: map[string]string{
				"R2_ACCESS_KEY_ID": "k", "R2_SECRET_ACCESS_KEY": "s", "R2_ACCOUNT_ID": "a",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.R2)
			},
		},
		{
			name: "postgres missing password",
			set: map[string]string{
				"POSTGRES_USER": "u", "POSTGRES_HOST": "h", "POSTGRES_DB": "d",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Nil(t, cfg.Postgres)
				assert.False(t, cfg.HasDuckLake())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.set {
				t.Setenv(k, v)
			}
			cfg, err := LoadFromEnv()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromEnv_DuckLakeWithoutR2Warns(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_HOST", "h")
	t.Setenv("POSTGRES_DB", "d")
	t.Setenv("DUCKLAKE_DATA_PATH", "/data/lake")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.HasDuckLake())
	assert.Nil(t, cfg.R2)
	assert.Contains(t, cfg.Warnings, "DuckLake attached without R2 credentials: data files use the local path /data/lake")
}

func TestLoadFromEnv_ExtensionDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("EXTENSION_DIR", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Empty(t, cfg.ExtensionDir)

	t.Setenv("EXTENSION_DIR", "/opt/ext")
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ext", cfg.ExtensionDir)
}

func TestLoadFromEnv_RateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPS", "5")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, cfg.RateLimitRPS, 0.0001)
	assert.Equal(t, 10, cfg.RateLimitBurst)

	t.Setenv("RATE_LIMIT_RPS", "fast")
	_, err = LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_CORSOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestParseLockdownPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    LockdownPolicy
		wantErr bool
	}{
		{in: "", want: LockdownDuckLakeRemote},
		{in: "ducklake-remote", want: LockdownDuckLakeRemote},
		{in: " ANY-REMOTE ", want: LockdownAnyRemote},
		{in: "always", want: LockdownAlways},
		{in: "never", want: LockdownNever},
		{in: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLockdownPolicy(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFromEnv_InvalidLockdown(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCAL_FS_LOCKDOWN", "sometimes")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOCAL_FS_LOCKDOWN")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nDOTENV_PLAIN=value\nDOTENV_QUOTED=\"quoted value\"\nDOTENV_SINGLE='single'\n\nnot-a-pair\nDOTENV_EXISTING=fromfile\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_PLAIN", "")
	t.Setenv("DOTENV_QUOTED", "")
	t.Setenv("DOTENV_SINGLE", "")
	t.Setenv("DOTENV_EXISTING", "fromenv")

	require.NoError(t, LoadDotEnv(path))

	assert.Equal(t, "value", os.Getenv("DOTENV_PLAIN"))
	assert.Equal(t, "quoted value", os.Getenv("DOTENV_QUOTED"))
	assert.Equal(t, "single", os.Getenv("DOTENV_SINGLE"))
	assert.Equal(t, "fromenv", os.Getenv("DOTENV_EXISTING"))
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
