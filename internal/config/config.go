package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreBolt     = "bolt"
)

const defaultConnectionString = "Host=localhost;Port=5432;Database=banking_ledger;Username=postgres;Password=postgres;Timeout=30;CommandTimeout=30"
const defaultHTTPAddr = ":8080"
const defaultBoltPath = "ledger.db"
const defaultLockTimeout = 5 * time.Second
const defaultOpeningBalance = "1000.00"

type Config struct {
	Environment    string
	LogLevel       string
	HTTPAddr       string
	StoreDriver    string
	DatabaseDSN    string
	BoltPath       string
	KafkaBrokers   []string
	LockTimeout    time.Duration
	OpeningBalance decimal.Decimal
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory are loaded first but never override real variables.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	driver := strings.ToLower(envOr("STORE_DRIVER", StoreMemory))
	switch driver {
	case StoreMemory, StorePostgres, StoreBolt:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", driver)
	}

	lockTimeout := defaultLockTimeout
	if raw := strings.TrimSpace(os.Getenv("LOCK_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("parse LOCK_TIMEOUT: %w", err)
		}
		lockTimeout = parsed
	}

	openingBalance, err := decimal.NewFromString(envOr("OPENING_BALANCE", defaultOpeningBalance))
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENING_BALANCE: %w", err)
	}
	if openingBalance.IsNegative() {
		return Config{}, fmt.Errorf("OPENING_BALANCE cannot be negative")
	}

	return Config{
		Environment:    envOr("APP_ENV", "development"),
		LogLevel:       envOr("LOG_LEVEL", "info"),
		HTTPAddr:       envOr("HTTP_ADDR", defaultHTTPAddr),
		StoreDriver:    driver,
		DatabaseDSN:    normalizeConnectionString(envOr("DATABASE_DSN", defaultConnectionString)),
		BoltPath:       envOr("BOLT_PATH", defaultBoltPath),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		LockTimeout:    lockTimeout,
		OpeningBalance: openingBalance.Round(2),
	}, nil
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

const applicationName = "banking-ledger"

// connectionKeys maps the keys accepted in semicolon style DSNs to lib/pq
// parameters. Lookups use the lowercased key with spaces removed.
var connectionKeys = map[string]string{
	"host":            "host",
	"server":          "host",
	"port":            "port",
	"database":        "dbname",
	"initialcatalog":  "dbname",
	"username":        "user",
	"userid":          "user",
	"user":            "user",
	"password":        "password",
	"timeout":         "connect_timeout",
	"connecttimeout":  "connect_timeout",
	"commandtimeout":  "statement_timeout",
	"sslmode":         "sslmode",
	"searchpath":      "search_path",
	"applicationname": "application_name",
}

// pool sizing is owned by postgres.Open; lib/pq would forward these to the
// server as unknown runtime parameters.
var poolKeys = map[string]struct{}{
	"pooling":         {},
	"minpoolsize":     {},
	"maxpoolsize":     {},
	"maximumpoolsize": {},
	"minimumpoolsize": {},
}

// normalizeConnectionString turns "Host=..;Database=.." style strings into
// lib/pq key/value DSNs tagged with the service's application_name. URLs and
// already-normalized DSNs pass through.
func normalizeConnectionString(raw string) string {
	if strings.HasPrefix(raw, "postgres://") || strings.HasPrefix(raw, "postgresql://") || !strings.Contains(raw, ";") {
		return raw
	}

	var out []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ";") {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), " ", ""))
		val = strings.TrimSpace(val)
		if normalized == "" {
			continue
		}
		if _, pool := poolKeys[normalized]; pool {
			continue
		}

		param, known := connectionKeys[normalized]
		if !known {
			param = normalized
		}
		if param == "statement_timeout" {
			// CommandTimeout is seconds; a bare number would be milliseconds
			val += "s"
		}
		seen[param] = true
		out = append(out, param+"="+quoteConnValue(val))
	}

	if len(out) == 0 {
		return raw
	}
	if !seen["sslmode"] {
		out = append(out, "sslmode=disable")
	}
	if !seen["application_name"] {
		out = append(out, "application_name="+applicationName)
	}
	return strings.Join(out, " ")
}

// quoteConnValue applies lib/pq quoting to values that contain spaces,
// quotes or backslashes, or that are empty.
func quoteConnValue(val string) string {
	if val != "" && !strings.ContainsAny(val, " '\\") {
		return val
	}
	val = strings.ReplaceAll(val, `\`, `\\`)
	val = strings.ReplaceAll(val, `'`, `\'`)
	return "'" + val + "'"
}
