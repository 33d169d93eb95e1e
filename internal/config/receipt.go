package config

import (
	"os"
	"strconv"
	"time"
)

// ReceiptConfig controls receipt-token generation for the QR lookup flow.
type ReceiptConfig struct {
	TokenTTL    time.Duration
	QRSize      int
	TokenPrefix string
}

func LoadReceiptConfig() *ReceiptConfig {
	return &ReceiptConfig{
		TokenTTL:    getEnvAsDuration("RECEIPT_TOKEN_TTL", 15*time.Minute),
		QRSize:      getEnvAsInt("RECEIPT_QR_SIZE", 256),
		TokenPrefix: getEnv("RECEIPT_TOKEN_PREFIX", "receipt"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	return defaultVal
}
