// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Port  string `env:"PORT" envDefault:"8080"`
	GoEnv string `env:"GO_ENV" envDefault:"development"`

	DatabaseURL string `env:"DATABASE_URL" envDefault:"host=localhost user=user password=password dbname=gigmarket port=5432 sslmode=disable"`

	// Empty RedisAddr disables the cross-instance relay and job tracking.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret             string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer             string `env:"JWT_ISSUER" envDefault:"gigmarket-service"`
	PaymentCallbackSecret string `env:"PAYMENT_CALLBACK_SECRET,required,notEmpty"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_ORDER_TOPIC" envDefault:"order-events"`
	// SASL/PLAIN is used when both are set.
	KafkaUsername string `env:"KAFKA_USERNAME"`
	KafkaPassword string `env:"KAFKA_PASSWORD"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	JobStatusTTL time.Duration `env:"JOB_STATUS_TTL" envDefault:"1h"`
}

// Load reads .env.<GO_ENV> (falling back to .env) and parses the environment.
// Missing .env files are fine: deployments set variables directly.
func Load() (*Config, error) {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	envFile := fmt.Sprintf(".env.%s", goEnv)
	if err := godotenv.Load(envFile); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file found, using system environment variables")
		}
	} else {
		log.Printf("Loaded configuration from %s", envFile)
	}

	return Parse()
}

// Parse builds a Config from the current process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.JobStatusTTL <= 0 {
		return fmt.Errorf("JOB_STATUS_TTL must be positive")
	}
	return nil
}

func (c *Config) RedisEnabled() bool    { return c.RedisAddr != "" }
func (c *Config) KafkaEnabled() bool    { return len(c.KafkaBrokers) > 0 }
func (c *Config) TelegramEnabled() bool { return c.TelegramBotToken != "" }

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GoEnv == "production"
}
