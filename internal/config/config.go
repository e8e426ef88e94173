package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	JWTSecret string `env:"JWT_SECRET"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"medcure.db"`

	// LLMProvider selects the embedding and generation backend pair.
	LLMProvider          string `env:"LLM_PROVIDER" envDefault:"openai"`
	GeminiAPIKey         string `env:"GEMINI_API_KEY"`
	GeminiChatModel      string `env:"GEMINI_CHAT_MODEL" envDefault:"gemini-1.5-flash-latest"`
	GeminiEmbeddingModel string `env:"GEMINI_EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	Embedding  EmbeddingConfig  `envPrefix:"EMBEDDING_"`
	Generation GenerationConfig `envPrefix:"GENERATION_"`
	Translate  TranslateConfig  `envPrefix:"TRANSLATE_"`
	Retrieval  RetrievalConfig  `envPrefix:"RETRIEVAL_"`
}

type EmbeddingConfig struct {
	// BaseURL is the OpenAI-compatible API root; /embeddings is appended.
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.openai.com/v1"`
	APIKey  string        `env:"API_KEY"`
	Model   string        `env:"MODEL" envDefault:"text-embedding-ada-002"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
	// RefreshDelay paces the batch refresh job between backend calls.
	RefreshDelay time.Duration `env:"REFRESH_DELAY" envDefault:"200ms"`
}

type GenerationConfig struct {
	BaseURL     string        `env:"BASE_URL" envDefault:"https://api.deepseek.com/v1"`
	APIKey      string        `env:"API_KEY"`
	Model       string        `env:"MODEL" envDefault:"deepseek-chat"`
	Temperature float64       `env:"TEMPERATURE" envDefault:"0.7"`
	MaxTokens   int           `env:"MAX_TOKENS" envDefault:"1000"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"30s"`

	BreakerFailures uint32        `env:"BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown time.Duration `env:"BREAKER_COOLDOWN" envDefault:"30s"`
}

type TranslateConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	APIKey  string `env:"API_KEY"`
	// Endpoint overrides the Cloud Translation base path.
	Endpoint string        `env:"ENDPOINT"`
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

type RetrievalConfig struct {
	Threshold   float64 `env:"THRESHOLD" envDefault:"0.6"`
	TopK        int     `env:"TOP_K" envDefault:"5"`
	ContentType string  `env:"CONTENT_TYPE" envDefault:"all"`
	// AnswerWithoutContext sends the no-context prompt to the generation
	// backend instead of replying with the canned "not enough information"
	// message.
	AnswerWithoutContext bool `env:"ANSWER_WITHOUT_CONTEXT" envDefault:"false"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider))
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_THRESHOLD must be within [0,1], got %v", c.Retrieval.Threshold))
	}
	if c.Retrieval.TopK <= 0 {
		errs = append(errs, fmt.Errorf("RETRIEVAL_TOP_K must be positive, got %d", c.Retrieval.TopK))
	}
	switch c.Retrieval.ContentType {
	case "all", "disease", "medicine":
	default:
		errs = append(errs, fmt.Errorf("unknown RETRIEVAL_CONTENT_TYPE %q", c.Retrieval.ContentType))
	}
	return errors.Join(errs...)
}
