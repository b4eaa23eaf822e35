package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/todo_service/pkg/db"
)

type Config struct {
	ServiceName string
	ServerPort  int
	LogLevel    string

	DBDriver    string
	DatabaseURL string

	JWTAccessSecret  []byte
	JWTRefreshSecret []byte
	AccessTTL        time.Duration
	RefreshTTL       time.Duration

	KafkaBrokers []string

	ESURL      string
	ESUser     string
	ESPassword string
	ESIndex    string

	CORSOrigins []string
}

// LoadEnvFile loads .env files if present. Missing files are only logged.
func LoadEnvFile(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			log.Printf("notice: %s not loaded: %v, using system environment variables", p, err)
		}
	}
}

func Load() Config {
	return Config{
		ServiceName: EnvDefault("SERVICE_NAME", "todo_service"),
		ServerPort:  EnvIntDefault("SERVER_PORT", 8080),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		DBDriver:    strings.ToLower(EnvDefault("DB_DRIVER", db.DriverPostgres)),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		JWTAccessSecret:  []byte(os.Getenv("JWT_SECRET")),
		JWTRefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		AccessTTL:        EnvDurationDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTTL:       EnvDurationDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),

		ESURL:      os.Getenv("ES_URL"),
		ESUser:     os.Getenv("ES_USER"),
		ESPassword: os.Getenv("ES_PASSWORD"),
		ESIndex:    EnvDefault("ES_INDEX", "todos"),

		CORSOrigins: CSV(os.Getenv("CORS_ORIGINS")),
	}
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return missing("DATABASE_URL")
	case len(c.JWTAccessSecret) == 0:
		return missing("JWT_SECRET")
	case len(c.JWTRefreshSecret) == 0:
		return missing("JWT_REFRESH_SECRET")
	case c.DBDriver != db.DriverPostgres && c.DBDriver != db.DriverSQLite:
		return &Error{Key: "DB_DRIVER", Reason: "must be postgres or sqlite, got " + strconv.Quote(c.DBDriver)}
	case c.AccessTTL <= 0:
		return &Error{Key: "ACCESS_TOKEN_TTL", Reason: "must be positive"}
	case c.RefreshTTL <= c.AccessTTL:
		return &Error{Key: "REFRESH_TOKEN_TTL", Reason: "must be longer than ACCESS_TOKEN_TTL"}
	}
	return nil
}

func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.ServerPort)
}

type Error struct {
	Key    string
	Reason string
}

func (e *Error) Error() string {
	return "config " + e.Key + ": " + e.Reason
}

func missing(key string) error {
	return &Error{Key: key, Reason: "missing required env"}
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
