// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env            string // APP_ENV, e.g. "dev" or "prod"
	Port           string // APP_PORT
	DBUser         string // DB_USER
	DBPass         string // DB_PASS (optional)
	DBHost         string // DB_HOST
	DBPort         string // DB_PORT
	DBName         string // DB_NAME
	JWTSecret      string // JWT_SECRET
	AccessTTLMin   int    // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays int    // REFRESH_TOKEN_TTL_DAYS
	BcryptCost     int    // BCRYPT_COST

	AMQPURL   string // RABBITMQ_URL or AMQP_URL; empty disables publishing
	LogLevel  string // LOG_LEVEL
	LogFormat string // LOG_FORMAT: json or text

	AdminUser string // ADMIN_USER, bootstrap admin when none exist
	AdminPass string // ADMIN_PASS

	Seating SeatingConfig
}

// SeatingConfig tunes the seat allocation core.
type SeatingConfig struct {
	HoldTTL     time.Duration // HOLD_TTL, default hold lifetime
	HoldMaxTTL  time.Duration // HOLD_MAX_TTL, upper bound a caller may ask for
	HoldStore   string        // HOLD_STORE: mysql or memory
	SweepEvery  time.Duration // HOLD_SWEEP_EVERY, 0 disables the background sweep
	LockBackend string        // SEAT_LOCK_BACKEND: local or redis
	LockWait    time.Duration // SEAT_LOCK_WAIT
	LockLease   time.Duration // SEAT_LOCK_LEASE
	Columns     []string      // SEAT_COLUMNS, e.g. "ABCDEF"
}

// Load reads configuration values from the environment and returns a
// Config.  A .env file in the working directory is applied first when
// present; real environment variables win over it.  Missing required
// variables cause the program to exit with a fatal log message.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		AMQPURL:   firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		AdminUser: os.Getenv("ADMIN_USER"),
		AdminPass: os.Getenv("ADMIN_PASS"),

		Seating: LoadSeatingConfig(),
	}
}

// LoadSeatingConfig reads the seat allocation settings.  Unknown backend
// names fall back to the defaults.
func LoadSeatingConfig() SeatingConfig {
	sc := SeatingConfig{
		HoldTTL:     envDur("HOLD_TTL", 5*time.Minute),
		HoldMaxTTL:  envDur("HOLD_MAX_TTL", 30*time.Minute),
		HoldStore:   strings.ToLower(envStr("HOLD_STORE", "mysql")),
		SweepEvery:  envDur("HOLD_SWEEP_EVERY", 0),
		LockBackend: strings.ToLower(envStr("SEAT_LOCK_BACKEND", "local")),
		LockWait:    envDur("SEAT_LOCK_WAIT", 2*time.Second),
		LockLease:   envDur("SEAT_LOCK_LEASE", 5*time.Second),
		Columns:     parseColumns(envStr("SEAT_COLUMNS", "ABCDEF")),
	}
	if sc.HoldStore != "memory" {
		sc.HoldStore = "mysql"
	}
	if sc.LockBackend != "redis" {
		sc.LockBackend = "local"
	}
	if sc.HoldTTL < 0 {
		sc.HoldTTL = 5 * time.Minute
	}
	if sc.HoldMaxTTL > 0 && sc.HoldTTL > sc.HoldMaxTTL {
		sc.HoldTTL = sc.HoldMaxTTL
	}
	return sc
}

// parseColumns accepts "ABCDEF" or "A,B,C,D,E,F".
func parseColumns(s string) []string {
	s = strings.ToUpper(strings.TrimSpace(s))
	var out []string
	if strings.Contains(s, ",") {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	} else {
		for _, r := range s {
			if r >= 'A' && r <= 'Z' {
				out = append(out, string(r))
			}
		}
	}
	if len(out) == 0 {
		return []string{"A", "B", "C", "D", "E", "F"}
	}
	return out
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

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
