package config

import (
	"os"
	"strconv"
	"time"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

type Processor struct {
	MaxPublishAttempts   int
	RetryBackoffBase     time.Duration
	RetryBackoffMax      time.Duration
	ProcessingStaleAfter time.Duration
	RunnerStaleAfter     time.Duration
}

type Queue struct {
	FailedHealthThreshold   int
	CascadeOnScheduleDelete bool
	ExpansionHorizonHours   int
}

type Config struct {
	InstagramClientID     string
	InstagramClientSecret string
	InstagramRedirectURI  string
	TiktokClientKey       string
	TiktokClientSecret    string
	TiktokRedirectURI     string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURI     string
	PostgresURI           string
	RedisURI              string
	FrontendURL           string
	R2                    R2
	Processor             Processor
	Queue                 Queue
	SecretKey             string
	CookieName            string
}

func LoadConfig() *Config {
	return &Config{
		InstagramClientID:     getEnv("INSTAGRAM_CLIENT_ID", ""),
		InstagramClientSecret: getEnv("INSTAGRAM_CLIENT_SECRET", ""),
		InstagramRedirectURI:  getEnv("INSTAGRAM_REDIRECT_URI", ""),
		TiktokClientKey:       getEnv("TIKTOK_CLIENT_KEY", ""),
		TiktokClientSecret:    getEnv("TIKTOK_CLIENT_SECRET", ""),
		TiktokRedirectURI:     getEnv("TIKTOK_REDIRECT_URI", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:     getEnv("GOOGLE_REDIRECT_URI", "http://localhost:3000/login/callback"),
		PostgresURI:           getEnv("POSTGRES_URI", ""),
		RedisURI:              getEnv("REDIS_URI", ""),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:5173"),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
		Processor: Processor{
			MaxPublishAttempts:   getEnvInt("MAX_PUBLISH_ATTEMPTS", 3),
			RetryBackoffBase:     getEnvDuration("RETRY_BACKOFF_BASE", 5*time.Minute),
			RetryBackoffMax:      getEnvDuration("RETRY_BACKOFF_MAX", 6*time.Hour),
			ProcessingStaleAfter: getEnvDuration("PROCESSING_STALE_AFTER", 15*time.Minute),
			RunnerStaleAfter:     getEnvDuration("RUNNER_STALE_AFTER", 5*time.Minute),
		},
		Queue: Queue{
			FailedHealthThreshold:   getEnvInt("QUEUE_FAILED_HEALTH_THRESHOLD", 10),
			CascadeOnScheduleDelete: getEnvBool("CASCADE_ON_SCHEDULE_DELETE", false),
			ExpansionHorizonHours:   getEnvInt("EXPANSION_HORIZON_HOURS", 24),
		},
		SecretKey:  getEnv("SECRET_KEY", ""),
		CookieName: getEnv("COOKIE_NAME", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
