package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	ServerPort string
	LogLevel   string

	JWTSecret string

	AccessTokenMaxAge  int
	RefreshTokenMaxAge int

	// RedisURL enables the async push stream. Empty means pushes are sent inline.
	RedisURL        string
	PushWorkerCount int

	FCMProjectID   string
	FCMClientEmail string
	FCMPrivateKey  string
	ExpoPushURL    string

	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	FacebookGraphURL string
	FacebookAppToken string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	PublicBaseURL string

	JobScheduleSearch   string
	JobSchedulePhotos   string
	JobScheduleFacebook string
	JobScheduleTokens   string
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		slog.Info("No .env file found or error loading it, relying on environment variables")
	}

	accessTokenMaxAge := getEnvInt("ACCESS_TOKEN_MAX_AGE", 900)
	refreshTokenMaxAge := getEnvInt("REFRESH_TOKEN_MAX_AGE", 2592000)

	return &Config{
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  getEnv("DB_SSLMODE", "require"),

		ServerPort: getEnv("SERVER_PORT", "8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		AccessTokenMaxAge:  accessTokenMaxAge,
		RefreshTokenMaxAge: refreshTokenMaxAge,

		RedisURL:        os.Getenv("REDIS_URL"),
		PushWorkerCount: getEnvInt("PUSH_WORKER_COUNT", 2),

		FCMProjectID:   os.Getenv("FCM_PROJECT_ID"),
		FCMClientEmail: os.Getenv("FCM_CLIENT_EMAIL"),
		FCMPrivateKey:  os.Getenv("FCM_PRIVATE_KEY"),
		ExpoPushURL:    getEnv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicURL:       os.Getenv("R2_PUBLIC_URL"),

		FacebookGraphURL: strings.TrimSuffix(getEnv("FACEBOOK_GRAPH_URL", "https://graph.facebook.com"), "/"),
		FacebookAppToken: os.Getenv("FACEBOOK_APP_TOKEN"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     os.Getenv("MAIL_FROM"),

		PublicBaseURL: strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		JobScheduleSearch:   getEnv("JOB_SCHEDULE_SEARCH", "0 0 3 * * *"),
		JobSchedulePhotos:   getEnv("JOB_SCHEDULE_PHOTOS", "0 30 3 * * *"),
		JobScheduleFacebook: getEnv("JOB_SCHEDULE_FACEBOOK", "@daily"),
		JobScheduleTokens:   getEnv("JOB_SCHEDULE_TOKENS", "0 0 4 * * *"),
	}, nil
}

// PushEnabled reports whether FCM credentials are configured.
func (c *Config) PushEnabled() bool {
	return c.FCMProjectID != "" && c.FCMClientEmail != "" && c.FCMPrivateKey != ""
}

// StorageEnabled reports whether R2 photo storage is configured.
func (c *Config) StorageEnabled() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicURL != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
