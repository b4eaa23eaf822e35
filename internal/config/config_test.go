package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/todo_service/pkg/db"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/todos")
	t.Setenv("JWT_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ACCESS_TOKEN_TTL", "")
	t.Setenv("REFRESH_TOKEN_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("ES_INDEX", "")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, db.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Nil(t, cfg.KafkaBrokers)
	assert.Equal(t, "todos", cfg.ESIndex)
	assert.Equal(t, []byte("access-secret"), cfg.JWTAccessSecret)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("ACCESS_TOKEN_TTL", "1h")
	t.Setenv("REFRESH_TOKEN_TTL", "72h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000")

	cfg := Load()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, db.DriverSQLite, cfg.DBDriver)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.Equal(t, 72*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestValidate_Errors(t *testing.T) {
	base := Config{
		DBDriver:         db.DriverPostgres,
		DatabaseURL:      "dsn",
		JWTAccessSecret:  []byte("a"),
		JWTRefreshSecret: []byte("r"),
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{name: "no dsn", mutate: func(c *Config) { c.DatabaseURL = "" }, key: "DATABASE_URL"},
		{name: "no access secret", mutate: func(c *Config) { c.JWTAccessSecret = nil }, key: "JWT_SECRET"},
		{name: "no refresh secret", mutate: func(c *Config) { c.JWTRefreshSecret = nil }, key: "JWT_REFRESH_SECRET"},
		{name: "bad driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, key: "DB_DRIVER"},
		{name: "zero access ttl", mutate: func(c *Config) { c.AccessTTL = 0 }, key: "ACCESS_TOKEN_TTL"},
		{name: "refresh shorter than access", mutate: func(c *Config) { c.RefreshTTL = time.Second }, key: "REFRESH_TOKEN_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var cfgErr *Error
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}

func TestEnvHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_INT", "abc")
	t.Setenv("X_DUR", "soon")
	assert.Equal(t, 7, EnvIntDefault("X_INT", 7))
	assert.Equal(t, time.Second, EnvDurationDefault("X_DUR", time.Second))
	assert.Equal(t, "d", EnvDefault("X_UNSET_KEY", "d"))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TODO_CFG_TEST_KEY=from-file\n"), 0o600))
	t.Setenv("TODO_CFG_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("TODO_CFG_TEST_KEY"))

	LoadEnvFile(path, filepath.Join(dir, "missing.env"))
	assert.Equal(t, "from-file", os.Getenv("TODO_CFG_TEST_KEY"))
}
