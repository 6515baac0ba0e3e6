package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Auth       AuthConfig
	Facebook   FacebookConfig
	AI         AIConfig
	Twilio     TwilioConfig
	Mail       MailConfig
	WorkerPool WorkerPoolConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecret string
}

// FacebookConfig holds Meta app credentials and webhook settings
type FacebookConfig struct {
	AppID              string
	AppSecret          string
	WebhookVerifyToken string
	FrontendURL        string
	BackendURL         string
}

// AIConfig holds model API settings. An empty APIKey selects the
// canned-fallback response generator.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// TwilioConfig holds WhatsApp sending credentials. All-empty disables the
// WhatsApp send path.
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
}

// MailConfig holds notification email settings. An empty APIKey disables
// lead-qualified notifications.
type MailConfig struct {
	ResendAPIKey string
	Sender       string
}

// WorkerPoolConfig holds worker pool configuration for webhook processing
type WorkerPoolConfig struct {
	WebhookWorkers int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	if cfg.Facebook.AppID, err = requireEnv("FB_APP_ID"); err != nil {
		return nil, err
	}
	if cfg.Facebook.AppSecret, err = requireEnv("FB_APP_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Facebook.WebhookVerifyToken, err = requireEnv("FB_WEBHOOK_VERIFY_TOKEN"); err != nil {
		return nil, err
	}
	if cfg.Facebook.FrontendURL, err = requireEnv("FRONTEND_URL"); err != nil {
		return nil, err
	}
	if cfg.Facebook.BackendURL, err = requireEnv("BACKEND_URL"); err != nil {
		return nil, err
	}

	// Model access is optional: without a key every AI reply comes from the
	// canned fallback table.
	cfg.AI.APIKey = os.Getenv("GROQ_API_KEY")
	cfg.AI.BaseURL = getEnvWithDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	cfg.AI.Model = getEnvWithDefault("GROQ_MODEL", "llama-3.3-70b-versatile")

	cfg.Twilio.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	cfg.Twilio.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	cfg.Twilio.WhatsAppFrom = os.Getenv("TWILIO_WHATSAPP_FROM")

	cfg.Mail.ResendAPIKey = os.Getenv("RESEND_API_KEY")
	cfg.Mail.Sender = getEnvWithDefault("DEFAULT_EMAIL_SENDER_ADDRESS", "notifications@salespilot.app")

	webhookWorkers := getEnvWithDefault("WEBHOOK_WORKERS", "8")
	cfg.WorkerPool.WebhookWorkers, err = strconv.Atoi(webhookWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse WEBHOOK_WORKERS: %w", err)
	}

	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
