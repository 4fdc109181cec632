package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr       string
	CRDBDSN        string
	MongoURI       string
	RedisAddr      string
	RabbitURL      string
	JWTSecret      string
	JWTTTL         time.Duration
	AdminEmail     string
	AdminPassword  string
	BookingTimeout time.Duration
	BookingRetries int
	OTLPEndpoint   string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	bookingTimeout, _ := time.ParseDuration(os.Getenv("BOOKING_TIMEOUT"))
	if bookingTimeout == 0 {
		bookingTimeout = 5 * time.Second
	}

	jwtTTL, _ := time.ParseDuration(os.Getenv("JWT_TTL"))
	if jwtTTL == 0 {
		jwtTTL = 7 * 24 * time.Hour
	}

	retries, _ := strconv.Atoi(os.Getenv("BOOKING_RETRIES"))
	if retries == 0 {
		retries = 4
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return &Config{
		HTTPAddr:       addr,
		CRDBDSN:        os.Getenv("CRDB_DSN"),
		MongoURI:       os.Getenv("MONGO_URI"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RabbitURL:      os.Getenv("RABBIT_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTTTL:         jwtTTL,
		AdminEmail:     os.Getenv("ADMIN_DEFAULT_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_DEFAULT_PASSWORD"),
		BookingTimeout: bookingTimeout,
		BookingRetries: retries,
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
