package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port     string
		Env      string
		LogLevel string
	}
	Database struct {
		DSN         string
		AutoMigrate bool
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	Kafka struct {
		Brokers         []string
		DeadLetterTopic string
	}
	Stripe struct {
		APIKey            string
		WebhookSecret     string
		WebhookTolerance  time.Duration
		UserIDMetadataKey string
	}
	Auth struct {
		JWTSecret string
	}
}

// LoadConfig загружает конфигурацию из .env (кроме production) и переменных окружения.
// Отсутствующий .env файл не считается ошибкой.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" && path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_AUTO_MIGRATE", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("KAFKA_DEAD_LETTER_TOPIC", "stripe-webhook-dead-letter")
	v.SetDefault("STRIPE_WEBHOOK_TOLERANCE", "300s")
	v.SetDefault("STRIPE_USER_ID_METADATA_KEY", "supabase_user_id")
}

func fromViper(v *viper.Viper) *Config {
	var cfg Config
	cfg.App.Env = v.GetString("APP_ENV")
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")

	cfg.Database.DSN = v.GetString("DATABASE_DSN")
	cfg.Database.AutoMigrate = v.GetBool("DB_AUTO_MIGRATE")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.DeadLetterTopic = v.GetString("KAFKA_DEAD_LETTER_TOPIC")

	cfg.Stripe.APIKey = v.GetString("STRIPE_API_KEY")
	cfg.Stripe.WebhookSecret = v.GetString("STRIPE_WEBHOOK_SECRET")
	cfg.Stripe.WebhookTolerance = v.GetDuration("STRIPE_WEBHOOK_TOLERANCE")
	cfg.Stripe.UserIDMetadataKey = v.GetString("STRIPE_USER_ID_METADATA_KEY")

	cfg.Auth.JWTSecret = v.GetString("AUTH_JWT_SECRET")
	return &cfg
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate проверяет обязательные параметры.
// Секрет вебхука не проверяется: без него сервис стартует и отвечает 500 на вебхуки.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.DSN == "" {
		missing = append(missing, "DATABASE_DSN")
	}
	if c.Stripe.APIKey == "" {
		missing = append(missing, "STRIPE_API_KEY")
	}
	if c.Stripe.UserIDMetadataKey == "" {
		missing = append(missing, "STRIPE_USER_ID_METADATA_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// IsProduction сообщает, запущен ли сервис в production окружении.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
