package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	// Storage
	StoreBackend string
	RedisAddr    string
	PostgresDSN  string
	KafkaBrokers []string

	// Session
	JWTSecret  string
	JWTTTL     time.Duration
	BcryptCost int

	// Rates
	PaymentRate  string
	UseLiveRate  bool
	RateAPIURL   string
	RateCacheTTL time.Duration

	// Simulated latencies
	LoginDelay            time.Duration
	PaymentLinkDelay      time.Duration
	ConversionDelay       time.Duration
	SettlementToggleDelay time.Duration
	NotificationTTL       time.Duration

	// Development simulators
	Simulate         bool
	SweepInterval    time.Duration
	SweepProbability float64
	AlertInterval    time.Duration
	AlertProbability float64
	SeedDemoUser     bool

	OTLPEndpoint string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using environment and defaults", "error", err)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "redis")),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		KafkaBrokers: getEnvList("KAFKA_BROKERS"),

		JWTSecret:  getEnv("JWT_SECRET", "supersecret"),
		JWTTTL:     getEnvPositiveDuration("JWT_TTL", 24*time.Hour),
		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		PaymentRate:  getEnv("PAYMENT_RATE", "83.00"),
		UseLiveRate:  getEnvBool("USE_LIVE_RATE", false),
		RateAPIURL:   getEnv("RATE_API_URL", "https://api.exchangerate-api.com/v4/latest/USD"),
		RateCacheTTL: getEnvPositiveDuration("RATE_CACHE_TTL", 2*time.Hour),

		LoginDelay:            getEnvDuration("LOGIN_DELAY", time.Second),
		PaymentLinkDelay:      getEnvDuration("PAYMENT_LINK_DELAY", 1500*time.Millisecond),
		ConversionDelay:       getEnvDuration("CONVERSION_DELAY", 3*time.Second),
		SettlementToggleDelay: getEnvDuration("SETTLEMENT_TOGGLE_DELAY", 1500*time.Millisecond),
		NotificationTTL:       getEnvDuration("NOTIFICATION_TTL", 5*time.Second),

		Simulate:         getEnvBool("SIMULATE", false),
		SweepInterval:    getEnvPositiveDuration("SWEEP_INTERVAL", 10*time.Second),
		SweepProbability: getEnvFloat("SWEEP_PROBABILITY", 0.3),
		AlertInterval:    getEnvPositiveDuration("ALERT_INTERVAL", 10*time.Second),
		AlertProbability: getEnvFloat("ALERT_PROBABILITY", 0.05),
		SeedDemoUser:     getEnvBool("SEED_DEMO_USER", true),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	if cfg.StoreBackend != "redis" && cfg.StoreBackend != "memory" {
		slog.Warn("unknown store backend, falling back to memory", "store_backend", cfg.StoreBackend)
		cfg.StoreBackend = "memory"
	}

	slog.Info("config loaded",
		"http_addr", cfg.HTTPAddr,
		"store_backend", cfg.StoreBackend,
		"redis_addr", cfg.RedisAddr,
		"postgres_enabled", cfg.PostgresDSN != "",
		"kafka_brokers", cfg.KafkaBrokers,
		"use_live_rate", cfg.UseLiveRate,
		"simulate", cfg.Simulate,
	)
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvPositiveDuration is getEnvDuration for values that must be above zero,
// such as ticker intervals.
func getEnvPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := getEnvDuration(key, defaultVal)
	if d <= 0 {
		slog.Warn("non-positive duration, using default", "key", key, "value", d, "default", defaultVal)
		return defaultVal
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
