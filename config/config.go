package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     string
	AppEnv   string
	MongoURI string
	MongoDB  string
	// MongoTransactions requires a replica set. Off on standalone servers.
	MongoTransactions bool

	JWTSecret string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NatsURL string

	VapidPublicKey  string
	VapidPrivateKey string
	VapidSubscriber string

	BanSweepSchedule   string
	StoryTTL           time.Duration
	CORSOrigins        []string
	RateLimitPerMinute int
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, fallback bool) (bool, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:             getEnv("PORT", "8080"),
		AppEnv:           getEnv("APP_ENV", "development"),
		MongoURI:         getEnv("MONGODB_URI", ""),
		MongoDB:          getEnv("MONGO_DB", "wayfarer"),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		NatsURL:          getEnv("NATS_URL", ""),
		VapidPublicKey:   getEnv("VAPID_PUBLIC_KEY", ""),
		VapidPrivateKey:  getEnv("VAPID_PRIVATE_KEY", ""),
		VapidSubscriber:  getEnv("VAPID_SUBSCRIBER", "mailto:admin@wayfarer.app"),
		BanSweepSchedule: getEnv("BAN_SWEEP_SCHEDULE", "0 0 * * *"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	if cfg.MongoURI == "" || cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("MONGODB_URI and JWT_SECRET must be set")
	}

	var err error
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerMinute, err = getInt("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return Config{}, err
	}
	if cfg.MongoTransactions, err = getBool("MONGO_TRANSACTIONS", false); err != nil {
		return Config{}, err
	}

	ttl := getEnv("STORY_TTL", "24h")
	if cfg.StoryTTL, err = time.ParseDuration(ttl); err != nil {
		return Config{}, fmt.Errorf("STORY_TTL: %w", err)
	}
	if cfg.StoryTTL <= 0 {
		return Config{}, fmt.Errorf("STORY_TTL must be positive")
	}

	return cfg, nil
}
