package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/guildops-backend/internal/data/db"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GUILDOPS_CONFIG", "LOG_MODE", "HTTP_ADDR", "METRICS_ENABLED", "METRICS_ADDR", "METRICS_SCRAPE_INTERVAL_SECONDS", "OTEL_SERVICE_NAME", "APP_ENV",
		"CORS_ORIGINS", "JWT_SECRET_KEY", "JWT_ISSUER", "DB_DRIVER", "POSTGRES_HOST", "POSTGRES_PORT",
		"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_NAME", "SQLITE_PATH", "DB_WRITE_ATTEMPTS", "REDIS_ADDR",
		"REDIS_PASSWORD", "REDIS_DB", "REDIS_CHANNEL", "NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD",
		"NEO4J_DATABASE", "NEO4J_TIMEOUT_SECONDS", "NEO4J_MAX_POOL_SIZE", "OTEL_ENABLED",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE", "OTEL_EXPORTER_OTLP_HEADERS", "OTEL_SAMPLER_RATIO",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig(nil, "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, db.DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "guildops", cfg.ServiceName)
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigYAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "guildops.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9000"
jwt_secret_key: from-file
cors_origins: ["https://raid.example"]
db:
  driver: sqlite
  sqlite_path: "file:quests.db"
redis:
  addr: "redis:6379"
  channel: guild.events
tracing:
  enabled: true
  endpoint: "collector:4318"
neo4j:
  uri: "bolt://graph:7687"
  database: quests
`), 0o644))

	t.Setenv("GUILDOPS_CONFIG", path)
	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("NEO4J_MAX_POOL_SIZE", "8")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "authorization=Bearer x")
	t.Setenv("OTEL_SAMPLER_RATIO", "0.5")

	cfg, err := LoadConfig(nil, "")
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.HTTPAddr)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, []string{"https://raid.example"}, cfg.CORSOrigins)
	assert.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "file:quests.db", cfg.DB.SQLitePath)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "guild.events", cfg.Redis.Channel)
	assert.True(t, cfg.Neo4j.Enabled())
	assert.Equal(t, "quests", cfg.Neo4j.Database)
	assert.Equal(t, 8, cfg.Neo4j.MaxPoolSize)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4318", cfg.Tracing.Endpoint)
	assert.Equal(t, map[string]string{"authorization": "Bearer x"}, cfg.Tracing.Headers)
	assert.Equal(t, 0.5, cfg.Tracing.SampleRatio)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigCORSFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CORS_ORIGINS", " https://a.example, ,https://b.example ")
	cfg, err := LoadConfig(nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadConfigBadFile(t *testing.T) {
	clearConfigEnv(t)
	_, err := LoadConfig(nil, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: [unterminated"), 0o644))
	_, err = LoadConfig(nil, path)
	assert.Error(t, err)
}
