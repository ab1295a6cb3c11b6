package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/guildops-backend/internal/data/db"
	"github.com/yungbote/guildops-backend/internal/observability"
	"github.com/yungbote/guildops-backend/internal/platform/envutil"
	"github.com/yungbote/guildops-backend/internal/platform/logger"
	"github.com/yungbote/guildops-backend/internal/platform/neo4jdb"
)

const configPathEnv = "GUILDOPS_CONFIG"

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type Config struct {
	LogMode     string                      `yaml:"log_mode"`
	HTTPAddr    string                      `yaml:"http_addr"`
	ServiceName string                      `yaml:"service_name"`
	Environment string                      `yaml:"environment"`
	CORSOrigins []string                    `yaml:"cors_origins"`
	JWTSecret   string                      `yaml:"jwt_secret_key"`
	JWTIssuer   string                      `yaml:"jwt_issuer"`
	DB          db.Config                   `yaml:"db"`
	Redis       RedisConfig                 `yaml:"redis"`
	Neo4j       neo4jdb.Config              `yaml:"neo4j"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
	Metrics     observability.MetricsConfig `yaml:"metrics"`
}

func defaultConfig() Config {
	return Config{
		LogMode:     "development",
		HTTPAddr:    ":8080",
		ServiceName: "guildops",
		Environment: "development",
		DB: db.Config{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "guildops",
		},
	}
}

// LoadConfig layers defaults, the YAML file at path (or $GUILDOPS_CONFIG) and
// the environment, in that order.
func LoadConfig(log *logger.Logger, path string) (Config, error) {
	cfg := defaultConfig()

	if strings.TrimSpace(path) == "" {
		path = os.Getenv(configPathEnv)
	}
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode, log)
	cfg.HTTPAddr = envutil.String("HTTP_ADDR", cfg.HTTPAddr, log)
	cfg.Metrics.Enabled = envutil.Bool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Addr = envutil.String("METRICS_ADDR", cfg.Metrics.Addr, log)
	cfg.Metrics.ScrapeIntervalSeconds = envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", cfg.Metrics.ScrapeIntervalSeconds, log)
	cfg.ServiceName = envutil.String("OTEL_SERVICE_NAME", cfg.ServiceName, log)
	cfg.Environment = envutil.String("APP_ENV", cfg.Environment, log)
	if origins := envutil.String("CORS_ORIGINS", "", log); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.JWTSecret = envutil.String("JWT_SECRET_KEY", cfg.JWTSecret, log)
	cfg.JWTIssuer = envutil.String("JWT_ISSUER", cfg.JWTIssuer, log)

	cfg.DB.Driver = envutil.String("DB_DRIVER", cfg.DB.Driver, log)
	cfg.DB.PostgresHost = envutil.String("POSTGRES_HOST", cfg.DB.PostgresHost, log)
	cfg.DB.PostgresPort = envutil.String("POSTGRES_PORT", cfg.DB.PostgresPort, log)
	cfg.DB.PostgresUser = envutil.String("POSTGRES_USER", cfg.DB.PostgresUser, log)
	cfg.DB.PostgresPassword = envutil.String("POSTGRES_PASSWORD", cfg.DB.PostgresPassword, log)
	cfg.DB.PostgresName = envutil.String("POSTGRES_NAME", cfg.DB.PostgresName, log)
	cfg.DB.SQLitePath = envutil.String("SQLITE_PATH", cfg.DB.SQLitePath, log)
	cfg.DB.WriteAttempts = envutil.Int("DB_WRITE_ATTEMPTS", cfg.DB.WriteAttempts, log)

	cfg.Redis.Addr = envutil.String("REDIS_ADDR", cfg.Redis.Addr, log)
	cfg.Redis.Password = envutil.String("REDIS_PASSWORD", cfg.Redis.Password, log)
	cfg.Redis.DB = envutil.Int("REDIS_DB", cfg.Redis.DB, log)
	cfg.Redis.Channel = envutil.String("REDIS_CHANNEL", cfg.Redis.Channel, log)

	cfg.Tracing.Enabled = envutil.Bool("OTEL_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Endpoint = envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.Endpoint, log)
	cfg.Tracing.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Tracing.Insecure)
	if h := observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log)); h != nil {
		cfg.Tracing.Headers = h
	}
	if raw := envutil.String("OTEL_SAMPLER_RATIO", "", log); raw != "" {
		ratio, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("OTEL_SAMPLER_RATIO: %w", err)
		}
		cfg.Tracing.SampleRatio = ratio
	}

	cfg.Neo4j.URI = envutil.String("NEO4J_URI", cfg.Neo4j.URI, log)
	cfg.Neo4j.User = envutil.String("NEO4J_USER", cfg.Neo4j.User, log)
	cfg.Neo4j.Password = envutil.String("NEO4J_PASSWORD", cfg.Neo4j.Password, log)
	cfg.Neo4j.Database = envutil.String("NEO4J_DATABASE", cfg.Neo4j.Database, log)
	cfg.Neo4j.TimeoutSeconds = envutil.Int("NEO4J_TIMEOUT_SECONDS", cfg.Neo4j.TimeoutSeconds, log)
	cfg.Neo4j.MaxPoolSize = envutil.Int("NEO4J_MAX_POOL_SIZE", cfg.Neo4j.MaxPoolSize, log)

	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
