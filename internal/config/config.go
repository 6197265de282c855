package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr     string
	ServiceName  string
	LogLevel     string
	PostgresDSN  string
	MongoURI     string
	MongoDB      string
	RedisAddr    string
	KafkaBrokers []string
	CORSOrigins  []string

	ProductServiceURL string
	CartServiceURL    string
	OrderServiceURL   string

	CallTimeout    time.Duration
	ReservationTTL time.Duration
	SweepInterval  time.Duration
}

// per-service listen defaults, same ports the frontend talks to
var defaultAddr = map[string]string{
	"user":    ":3001",
	"product": ":3002",
	"cart":    ":3003",
	"order":   ":3004",
}

// Load reads the environment for the named service. Storage and broker
// settings default to empty, which selects the in-memory / discard backends.
func Load(service string) (Config, error) {
	addr, ok := defaultAddr[service]
	if !ok {
		addr = ":8080"
	}
	cfg := Config{
		HTTPAddr:          getenv("HTTP_ADDR", addr),
		ServiceName:       getenv("SERVICE_NAME", service+"-service"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getenv("MONGO_DATABASE", "TechGuru_"+titleCase(service)),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		KafkaBrokers:      splitCSV(os.Getenv("KAFKA_BROKERS")),
		CORSOrigins:       splitCSV(getenv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		ProductServiceURL: strings.TrimRight(getenv("PRODUCT_SERVICE_URL", "http://localhost:3002"), "/"),
		CartServiceURL:    strings.TrimRight(getenv("CART_SERVICE_URL", "http://localhost:3003"), "/"),
		OrderServiceURL:   strings.TrimRight(getenv("ORDER_SERVICE_URL", "http://localhost:3004"), "/"),
	}

	var err error
	if cfg.CallTimeout, err = duration("CALL_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ReservationTTL, err = duration("RESERVATION_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = duration("SWEEP_INTERVAL", time.Minute); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func duration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config %s: must be positive, got %s", k, v)
	}
	return d, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
