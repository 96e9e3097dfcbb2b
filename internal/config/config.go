package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr     string
	MongoURI       string
	MongoDatabase  string
	RedisAddr      string
	RabbitURL      string
	JWTSecret      string
	PaymentURL     string
	PaymentKey     string
	PaymentWindow  time.Duration
	Currency       string
	SuccessURL     string
	CancelURL      string
	CatalogURL     string
	CatalogKey     string
	CatalogTTL     time.Duration
	SweepInterval  time.Duration
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		MongoURI:      os.Getenv("MONGO_URI"),
		MongoDatabase: envOr("MONGO_DATABASE", "ssb"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		PaymentURL:    os.Getenv("PAYMENT_URL"),
		PaymentKey:    os.Getenv("PAYMENT_KEY"),
		PaymentWindow: durationOr("PAYMENT_WINDOW", 30*time.Minute),
		Currency:      envOr("CURRENCY", "usd"),
		SuccessURL:    envOr("SUCCESS_URL", "http://localhost:3000/loading/my-bookings"),
		CancelURL:     envOr("CANCEL_URL", "http://localhost:3000/my-bookings"),
		CatalogURL:    os.Getenv("CATALOG_URL"),
		CatalogKey:    os.Getenv("CATALOG_KEY"),
		CatalogTTL:    durationOr("CATALOG_TTL", 10*time.Minute),
		SweepInterval: durationOr("SWEEP_INTERVAL", time.Minute),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
