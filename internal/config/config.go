package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        string
	AppURL      string
	DatabaseURL string
	RedisURL    string

	LogLevel  string
	LogFormat string

	FirebaseCredentialsPath string
	FirebaseAPIKey          string
	FirebaseAuthDomain      string
	FirebaseProjectID       string

	MidtransServerKey    string
	MidtransClientKey    string
	MidtransIsProduction bool

	SMTPHost  string
	SMTPPort  int
	SMTPUser  string
	SMTPPass  string
	EmailFrom string

	BankName        string
	BankIBAN        string
	BankBeneficiary string

	SupportEmail string
	SupportPhone string

	WorkerIntervalMinutes int
	PublicRateLimitPerMin int
}

// Load reads the .env file when present and falls back to the process environment.
func Load() *Config {
	godotenv.Load()

	return &Config{
		Env:         getEnv("ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:8080"), "/"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json"),
		FirebaseAPIKey:          os.Getenv("FIREBASE_API_KEY"),
		FirebaseAuthDomain:      os.Getenv("FIREBASE_AUTH_DOMAIN"),
		FirebaseProjectID:       os.Getenv("FIREBASE_PROJECT_ID"),

		MidtransServerKey:    os.Getenv("MIDTRANS_SERVER_KEY"),
		MidtransClientKey:    os.Getenv("MIDTRANS_CLIENT_KEY"),
		MidtransIsProduction: getEnvAsBool("MIDTRANS_IS_PRODUCTION", false),

		SMTPHost:  os.Getenv("SMTP_HOST"),
		SMTPPort:  getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:  os.Getenv("SMTP_USER"),
		SMTPPass:  os.Getenv("SMTP_PASS"),
		EmailFrom: getEnv("EMAIL_FROM", os.Getenv("SMTP_USER")),

		BankName:        getEnv("BANK_NAME", "مصرف الراجحي"),
		BankIBAN:        os.Getenv("BANK_IBAN"),
		BankBeneficiary: getEnv("BANK_BENEFICIARY", "معروضي"),

		SupportEmail: getEnv("SUPPORT_EMAIL", "support@m3roodi.com"),
		SupportPhone: os.Getenv("SUPPORT_PHONE"),

		WorkerIntervalMinutes: getEnvAsInt("WORKER_INTERVAL_MINUTES", 5),
		PublicRateLimitPerMin: getEnvAsInt("PUBLIC_RATE_LIMIT_PER_MIN", 30),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
