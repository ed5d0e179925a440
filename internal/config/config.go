package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
)

// Config holds runtime configuration for a digest run.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Corpus
	CorpusProvider string `env:"CORPUS_PROVIDER" envDefault:"jsonl" validate:"oneof=jsonl postgres"`
	CorpusPath     string `env:"CORPUS_PATH" envDefault:"data/corpus.jsonl"`
	DBURL          string `env:"DB_URL"`

	// Clustering
	ClusterText         string  `env:"CLUSTER_TEXT" envDefault:"both" validate:"oneof=both title content"`
	SimilarityThreshold float64 `env:"SIMILARITY_THRESHOLD" envDefault:"0.4" validate:"gte=0,lte=1"`

	// Embeddings
	EmbeddingProvider  string `env:"EMBEDDING_PROVIDER" envDefault:"openai" validate:"oneof=openai"`
	OpenAIKey          string `env:"OPENAI_API_KEY"`
	EmbeddingModel     string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingBatchSize int    `env:"EMBEDDING_BATCH_SIZE" envDefault:"64" validate:"min=1"`

	// Summarization
	LLMProvider       string        `env:"LLM_PROVIDER" envDefault:"groq" validate:"oneof=groq openai"` // groq talks to Groq's OpenAI compatible endpoint
	LLMAPIKey         string        `env:"LLM_API_KEY"`
	GroqAPIKey        string        `env:"GROQ_API_KEY"`
	LLMBaseURL        string        `env:"LLM_BASE_URL"` // empty selects the provider's public endpoint
	LLMModel          string        `env:"LLM_MODEL" envDefault:"mixtral-8x7b-32768"`
	MaxPromptChars    int           `env:"MAX_PROMPT_CHARS" envDefault:"32768" validate:"min=1"`
	SectionMarker     string        `env:"SECTION_MARKER" envDefault:"Title:" validate:"required"`
	CallDelay         time.Duration `env:"CALL_DELAY" envDefault:"5s" validate:"gte=0"`
	RateLimitCooldown time.Duration `env:"RATE_LIMIT_COOLDOWN" envDefault:"60s" validate:"gte=0"`
	MaxRateLimitWait  time.Duration `env:"MAX_RATE_LIMIT_WAIT" envDefault:"0s" validate:"gte=0"` // 0 keeps retrying rate limits forever
	ErrorRetryDelay   time.Duration `env:"ERROR_RETRY_DELAY" envDefault:"7s" validate:"gte=0"`
	ErrorRetries      int           `env:"ERROR_RETRIES" envDefault:"1" validate:"gte=0"`
	SummaryLanguage   string        `env:"SUMMARY_LANGUAGE" envDefault:"italian" validate:"required"`
	PersistDegraded   bool          `env:"PERSIST_DEGRADED" envDefault:"true"`

	// Toxicity
	ToxicityProvider string `env:"TOXICITY_PROVIDER" envDefault:"http" validate:"oneof=http none"`
	ToxicityURL      string `env:"TOXICITY_URL" envDefault:"http://localhost:8000/predict"`

	// Result cache
	CacheProvider string `env:"CACHE_PROVIDER" envDefault:"file" validate:"oneof=file sqlite redis postgres none"`
	CachePath     string `env:"CACHE_PATH" envDefault:"backups/summarize_clusters.json"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	CacheKey      string `env:"CACHE_KEY" envDefault:"digest:records"`

	// Run
	Workers         int `env:"WORKERS" envDefault:"1" validate:"min=1"`
	CheckpointEvery int `env:"CHECKPOINT_EVERY" envDefault:"10" validate:"gte=0"` // 0 flushes only at the end

	// Record hand-off
	QueueProvider string `env:"QUEUE_PROVIDER" envDefault:"none" validate:"oneof=none nats"`
	QueueURL      string `env:"QUEUE_URL"`
}

var validate = validator.New()

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}

// Validate checks ranges and provider names.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// LLMKey returns the chat backend key, falling back to GROQ_API_KEY and then OPENAI_API_KEY.
func (c Config) LLMKey() string {
	switch {
	case c.LLMAPIKey != "":
		return c.LLMAPIKey
	case c.GroqAPIKey != "":
		return c.GroqAPIKey
	default:
		return c.OpenAIKey
	}
}
