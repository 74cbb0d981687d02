// Package config loads application configuration from environment
// variables, optionally pre-populated from a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/owenwalSe7en/The-Bunker-Finances/internal/database"
)

// Config holds the runtime configuration of the API server and the
// operator CLI.
type Config struct {
	Env       string           // application environment (dev, test, prod)
	Port      string           // HTTP port to listen on
	DBDriver  database.Dialect // postgres, sqlite or mysql
	DBDSN     string           // full DSN; built from DB_* parts when empty
	JWTSecret string           // HS256 secret of the authorization predicate
	Events    EventsConfig
}

// EventsConfig controls ledger event publishing and the audit consumer.
type EventsConfig struct {
	Enabled  bool
	URL      string
	AuditLog string
	Consume  bool
}

// LoadDotEnv loads .env from the working directory when present.  Values
// already in the environment win.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: .env not loaded: %v", err)
	}
}

// Load reads the server configuration.  Required variables are enforced by
// must() and a missing value ends the process.
func Load() Config {
	LoadDotEnv()
	db := LoadDB()
	return Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      must("APP_PORT"),
		DBDriver:  db.Driver,
		DBDSN:     db.DSN,
		JWTSecret: must("JWT_SECRET"),
		Events:    LoadEventsConfig(),
	}
}

// DBConfig is the subset the migration CLI needs.
type DBConfig struct {
	Driver database.Dialect
	DSN    string
}

// LoadDB reads DB_DRIVER and DB_DSN, falling back to the discrete DB_USER,
// DB_PASS, DB_HOST, DB_PORT and DB_NAME variables, or DB_PATH for SQLite.
func LoadDB() DBConfig {
	raw := envStr("DB_DRIVER", "postgres")
	d, ok := database.ParseDialect(raw)
	if !ok {
		log.Fatalf("config: unsupported DB_DRIVER %q", raw)
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch d {
		case database.SQLite:
			dsn = database.SQLiteDSN(envStr("DB_PATH", "bunker.db"))
		case database.MySQL:
			dsn = database.MySQLDSN(must("DB_USER"), os.Getenv("DB_PASS"), must("DB_HOST"), must("DB_PORT"), must("DB_NAME"))
		default:
			dsn = database.PostgresDSN(must("DB_USER"), os.Getenv("DB_PASS"), must("DB_HOST"), must("DB_PORT"), must("DB_NAME"))
		}
	}
	return DBConfig{Driver: d, DSN: dsn}
}

func LoadEventsConfig() EventsConfig {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = os.Getenv("AMQP_URL")
	}
	return EventsConfig{
		Enabled:  envBool("EVENTS_ENABLED", false),
		URL:      url,
		AuditLog: envStr("EVENTS_AUDIT_LOG", "logs/ledger.log"),
		Consume:  envBool("EVENTS_CONSUME", false),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	if n, err := strconv.Atoi(os.Getenv(k)); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	if dur, err := time.ParseDuration(os.Getenv(k)); err == nil {
		return dur
	}
	return d
}
