package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	JWTSecret   string
	MongoURI    string
	DBName      string
	RedisAddr   string
	SkipAuth    bool
	Environment string
	AppId       string

	// POS provider
	POSBaseURL     string
	POSAuthURL     string
	POSPageSize    int
	POSHTTPTimeout time.Duration

	// Credential encryption. The first 32 bytes are used as the AES key.
	EncryptionSecret string

	// Sync worker
	WorkerPollInterval time.Duration
	JobTimeout         time.Duration
	HeartbeatTTL       time.Duration
	MaxAttempts        int
	FullSyncLookback   time.Duration
	SyncSchedule       string

	// Completion emails
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   getEnv("JWT_SECRET", "secret"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:      getEnv("DB_NAME", "go-pos-sync"),
		RedisAddr:   getEnv("REDIS_ADDR", ""),
		SkipAuth:    getEnv("SKIP_AUTH", "false") == "true",
		Environment: getEnv("ENVIRONMENT", "development"),
		AppId:       getEnv("APP_ID", "go-pos-sync"),

		POSBaseURL:     getEnv("POS_BASE_URL", "https://api.posprovider.com"),
		POSAuthURL:     getEnv("POS_AUTH_URL", "https://auth.posprovider.com/oauth/token"),
		POSPageSize:    getEnvInt("POS_PAGE_SIZE", 100),
		POSHTTPTimeout: getEnvDuration("POS_HTTP_TIMEOUT", 30*time.Second),

		EncryptionSecret: getEnv("POS_ENCRYPTION_SECRET", ""),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 15*time.Minute),
		HeartbeatTTL:       getEnvDuration("HEARTBEAT_TTL", 2*time.Minute),
		MaxAttempts:        getEnvInt("MAX_ATTEMPTS", 3),
		FullSyncLookback:   getEnvDuration("FULL_SYNC_LOOKBACK", 30*24*time.Hour),
		SyncSchedule:       getEnv("SYNC_SCHEDULE", ""),

		SMTPHost: getEnv("SMTP_HOST", ""),
		SMTPPort: getEnvInt("SMTP_PORT", 587),
		SMTPUser: getEnv("SMTP_USER", ""),
		SMTPPass: getEnv("SMTP_PASS", ""),
		SMTPFrom: getEnv("SMTP_FROM", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
