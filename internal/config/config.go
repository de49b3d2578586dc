package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Типы хранилища сессий.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Типы генераторов.
const (
	GeneratorPlaceholder = "placeholder"
	GeneratorOpenAI      = "openai"
	GeneratorOllama      = "ollama"
)

// Config holds the application configuration.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"debug"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	SecretsDir  string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	// Сессии
	SessionStore        string        `envconfig:"SESSION_STORE" default:"memory"` // memory | redis
	SessionTTL          time.Duration `envconfig:"SESSION_TTL" default:"2h"`
	SessionCookieName   string        `envconfig:"SESSION_COOKIE_NAME" default:"wizard_session"`
	SessionCookieSecure bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
	// Секретное поле БЕЗ envconfig тега
	SessionSecret string

	// Redis
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	// Секретное поле БЕЗ envconfig тега (если пароль используется)
	RedisPassword string

	// Генерация
	GeneratorType             string        `envconfig:"GENERATOR_TYPE" default:"placeholder"` // placeholder | openai | ollama
	PlaceholderNarrativeDelay time.Duration `envconfig:"PLACEHOLDER_NARRATIVE_DELAY" default:"1500ms"`
	PlaceholderSynthesisDelay time.Duration `envconfig:"PLACEHOLDER_SYNTHESIS_DELAY" default:"2s"`
	GenerationTimeout         time.Duration `envconfig:"GENERATION_TIMEOUT" default:"60s"`
	MaxConcurrentGenerations  int           `envconfig:"MAX_CONCURRENT_GENERATIONS" default:"100"`
	PromptCatalogPath         string        `envconfig:"PROMPT_CATALOG_PATH" default:"configs/prompts.yaml"`

	// AI
	AIBaseURL         string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel           string        `envconfig:"AI_MODEL" default:"gpt-4o-mini"`
	AITimeout         time.Duration `envconfig:"AI_TIMEOUT" default:"45s"`
	AIMaxPromptTokens int           `envconfig:"AI_MAX_PROMPT_TOKENS" default:"3000"`
	AITemperature     float64       `envconfig:"AI_TEMPERATURE" default:"0.8"`
	// Секретное поле БЕЗ envconfig тега
	AIAPIKey string

	// RabbitMQ (пустой URL отключает публикацию событий)
	RabbitMQURL       string `envconfig:"RABBITMQ_URL" default:""`
	WizardEventsQueue string `envconfig:"WIZARD_EVENTS_QUEUE" default:"wizard_events"`

	// CORS Settings
	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Ограничение частоты запросов генерации на клиента
	RateLimitPerMinute uint `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
}

// GetAllowedOrigins splits the CORSAllowedOrigins string into a slice.
func (c *Config) GetAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}
	return strings.Split(strings.ReplaceAll(c.CORSAllowedOrigins, " ", ""), ",")
}

// IsProduction сообщает, запущен ли сервис в production-окружении.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate проверяет значения, которые envconfig не умеет проверять сам.
func (c *Config) Validate() error {
	switch c.SessionStore {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.SessionStore)
	}
	switch c.GeneratorType {
	case GeneratorPlaceholder, GeneratorOllama:
	case GeneratorOpenAI:
		if c.AIAPIKey == "" {
			return fmt.Errorf("GENERATOR_TYPE=openai requires the ai_api_key secret")
		}
	default:
		return fmt.Errorf("unknown GENERATOR_TYPE %q", c.GeneratorType)
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive, got %s", c.GenerationTimeout)
	}
	if c.MaxConcurrentGenerations <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_GENERATIONS must be positive, got %d", c.MaxConcurrentGenerations)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// LoadConfig loads configuration from environment variables and secrets.
func LoadConfig(envFilePath string) (*Config, error) {
	if envFilePath != "" {
		if _, err := os.Stat(envFilePath); err == nil {
			if err = godotenv.Load(envFilePath); err != nil {
				log.Printf("Warning: Could not load %s file: %v", envFilePath, err)
			} else {
				log.Printf("Loaded configuration from %s", envFilePath)
			}
		} else if !os.IsNotExist(err) {
			log.Printf("Warning: Error checking %s file: %v", envFilePath, err)
		}
	}

	var cfg Config
	// Загружаем НЕсекретные переменные из окружения
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	// Все секреты необязательны, у каждого есть fallback
	if secret, err := ReadSecret(cfg.SecretsDir, "session_secret"); err == nil {
		cfg.SessionSecret = secret
	} else {
		cfg.SessionSecret = randomSecret()
		log.Printf("Optional secret 'session_secret' not found: %v. Using a random per-process key; sessions will not survive restarts.", err)
	}

	if redisPass, err := ReadSecret(cfg.SecretsDir, "redis_password"); err == nil {
		cfg.RedisPassword = redisPass
		log.Println("Redis password loaded from secret.")
	} else if cfg.SessionStore == SessionStoreRedis {
		log.Printf("Optional secret 'redis_password' not found or failed to read: %v. Assuming no password.", err)
	}

	if apiKey, err := ReadSecret(cfg.SecretsDir, "ai_api_key"); err == nil {
		cfg.AIAPIKey = apiKey
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Println("Configuration loaded successfully (secrets read from files).")
	return &cfg, nil
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
