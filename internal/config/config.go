package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	UpstreamTimeout time.Duration

	// Store API (orders, jobs, catalog)
	StoreAPIURL        string
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration

	// Job polling
	PollInterval    time.Duration
	PollMaxAttempts int
	PollTimeout     time.Duration

	SessionIdleTTL time.Duration

	// Optional sinks; empty disables them
	DBDSN       string
	RabbitMQURL string

	// CORS
	CORSAllowOrigins []string
}

// Load reads the environment, after merging a .env file from the working
// directory when one exists. Real environment variables win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, err
	}
	return fromEnv(), nil
}

func fromEnv() Config {
	return Config{
		Port:            getenv("PORT", "8080"),
		UpstreamTimeout: parseDuration(getenv("UPSTREAM_TIMEOUT", "10s"), 10*time.Second),

		StoreAPIURL:        getenv("STORE_API_URL", "http://localhost:5000"),
		BreakerMaxFailures: uint32(parseInt(getenv("BREAKER_MAX_FAILURES", "5"), 5)),
		BreakerCooldown:    parseDuration(getenv("BREAKER_COOLDOWN", "30s"), 30*time.Second),

		PollInterval:    parseDuration(getenv("POLL_INTERVAL", "2s"), 2*time.Second),
		PollMaxAttempts: parseInt(getenv("POLL_MAX_ATTEMPTS", "150"), 150),
		PollTimeout:     parseDuration(getenv("POLL_TIMEOUT", "5m"), 5*time.Minute),

		SessionIdleTTL: parseDuration(getenv("SESSION_IDLE_TTL", "30m"), 30*time.Minute),

		DBDSN:       os.Getenv("CHECKOUT_DB_DSN"),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),

		CORSAllowOrigins: splitCSV(getenv("CORS_ALLOW_ORIGINS", "*")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func parseInt(v string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 {
		return def
	}
	return n
}
