package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Environment string
	Debug       bool

	DBDriver   string
	DBDSN      string
	SQLitePath string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Booking policy
	LeadTime time.Duration
	Location *time.Location

	JWTSecret          string
	CORSAllowedOrigins []string

	TelegramToken   string
	AMQPURL         string
	AMQPExchange    string
	NotifyQueueSize int

	LogFile string
}

func Load() (*Config, error) {
	// .env is optional; real environment variables win
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	} else {
		log.Println("Loaded configuration from .env file")
	}

	cfg := &Config{
		Environment:        envString("ENV", "development"),
		Debug:              envBool("DEBUG", false),
		DBDriver:           strings.ToLower(envString("DB_DRIVER", DriverPostgres)),
		DBDSN:              os.Getenv("DB_DSN"),
		SQLitePath:         envString("SQLITE_PATH", "data/portal.db"),
		HTTPAddr:           envString("HTTP_ADDR", ":8080"),
		ShutdownTimeout:    envDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSAllowedOrigins: envList("CORS_ALLOWED_ORIGINS"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		AMQPURL:            os.Getenv("AMQP_URL"),
		AMQPExchange:       envString("AMQP_EXCHANGE", "advising.events"),
		NotifyQueueSize:    envInt("NOTIFY_QUEUE_SIZE", 256),
		LogFile:            os.Getenv("LOG_FILE"),
	}

	lead, err := envNonNegativeInt("BOOKING_LEAD_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	cfg.LeadTime = time.Duration(lead) * time.Minute

	tz := envString("TIME_ZONE", "Europe/London")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("TIME_ZONE %q: %w", tz, err)
	}

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBDSN == "" {
			dsn, err := GetDSN()
			switch {
			case err == nil:
				cfg.DBDSN = dsn
			case errors.Is(err, ErrDSNNotFound):
				return nil, fmt.Errorf("DB_DSN is required but not set")
			default:
				return nil, fmt.Errorf("DB_DSN is not set and keyring lookup failed: %w", err)
			}
		}
	case DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return b
}

// envInt reads a positive int with a default.
func envInt(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// envNonNegativeInt is strict: a malformed value is an error, not a default.
func envNonNegativeInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, v)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
