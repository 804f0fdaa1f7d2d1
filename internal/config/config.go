package config

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr      string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	KafkaBrokers  []string
	ServiceName   string
	JWTSecret     string

	// PortOne (iamport) gateway credentials. May be empty; order creation
	// then fails with a misconfiguration error instead of at startup.
	PortOneAPIKey    string
	PortOneAPISecret string
	PortOneBaseURL   string
}

func Load() Config {
	return Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		MongoURI:         getenv("MONGODB_URI", "mongodb://mongo:27017"),
		MongoDatabase:    getenv("MONGODB_DATABASE", "ptshop"),
		RedisAddr:        getenv("REDIS_ADDR", "redis:6379"),
		KafkaBrokers:     splitCSV(getenv("KAFKA_BROKERS", "kafka:9092")),
		ServiceName:      getenv("SERVICE_NAME", "ptshop-api"),
		JWTSecret:        getenv("JWT_SECRET", "dev-secret"),
		PortOneAPIKey:    getenv("IMP_REST_API_KEY", ""),
		PortOneAPISecret: getenv("IMP_REST_API_SECRET", ""),
		PortOneBaseURL:   getenv("IMP_BASE_URL", "https://api.iamport.kr"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
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
