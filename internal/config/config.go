package config

import (
	"os"
	"strconv"
	"time"

	"match_coordinator/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	AllowedOrigin string
	LogLevel      string
	LogJSON       bool

	TicketSecret string
	TicketTTL    time.Duration

	// turn timing and terminal conditions
	ConnectTimeout time.Duration
	TurnBudget     time.Duration
	TurnGrace      time.Duration
	ScoreTarget    int
	TurnCap        int

	// matchmaking
	PairInterval time.Duration
	QueueWait    time.Duration

	// negotiation relay
	RelayBuffer int
	RelayGrace  time.Duration

	// fallback move synthesis: "random" or "predictor"
	FallbackStrategy string

	// optional integrations
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminToken string

	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from the environment, with .env support for
// development.
func Load() *Config {
	_ = godotenv.Load()

	secret := os.Getenv("TICKET_SECRET")
	if secret == "" {
		logger.Fatal("TICKET_SECRET is not set")
	}

	adminToken := os.Getenv("ADMIN_TOKEN")
	if adminToken == "" {
		logger.Warn("ADMIN_TOKEN is not set; /admin endpoints disabled")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	return &Config{
		AppPort:       port,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      envString("LOG_LEVEL", "info"),
		LogJSON:       os.Getenv("LOG_JSON") == "true",

		TicketSecret: secret,
		TicketTTL:    envDuration("TICKET_TTL_SECONDS", 30*time.Second),

		ConnectTimeout: envDuration("CONNECT_TIMEOUT_SECONDS", 60*time.Second),
		TurnBudget:     envDuration("TURN_BUDGET_SECONDS", 15*time.Second),
		TurnGrace:      envDuration("TURN_GRACE_MS", 250*time.Millisecond),
		ScoreTarget:    envInt("SCORE_TARGET", 3),
		TurnCap:        envInt("TURN_CAP", 10),

		PairInterval: envDuration("PAIR_INTERVAL_MS", 500*time.Millisecond),
		QueueWait:    envDuration("QUEUE_WAIT_SECONDS", 25*time.Second),

		RelayBuffer: envInt("RELAY_BUFFER", 32),
		RelayGrace:  envDuration("RELAY_GRACE_SECONDS", 10*time.Second),

		FallbackStrategy: envString("FALLBACK_STRATEGY", "random"),

		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		AdminToken: adminToken,

		APIRateLimit:  envInt("API_RATE_LIMIT", 60),
		APIRateWindow: envDuration("API_RATE_WINDOW_SECONDS", time.Minute),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// envDuration reads an integer env var whose unit is encoded in the
// key suffix (_SECONDS or _MS).
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	if len(key) > 3 && key[len(key)-3:] == "_MS" {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}
