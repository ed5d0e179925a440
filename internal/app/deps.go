package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"

	"news-digest/internal/cache"
	"news-digest/internal/config"
	"news-digest/internal/corpus"
	"news-digest/internal/embeddings"
	"news-digest/internal/llm"
	"news-digest/internal/logger"
	"news-digest/internal/queue"
	"news-digest/internal/retry"
	"news-digest/internal/toxicity"
)

// Deps bundles runtime dependencies for the digest commands.
// Each Build* fills only what its command needs; Close releases whatever was opened.
type Deps struct {
	Config     config.Config
	Log        *slog.Logger
	Corpus     corpus.Source
	Embedder   embeddings.Embedder
	Summarizer *llm.SummaryClient
	Scorer     toxicity.Scorer // nil when TOXICITY_PROVIDER=none
	Store      cache.Store
	Queue      queue.Queue // nil when QUEUE_PROVIDER=none

	closers []func() error
}

// Close releases connections in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			d.Log.Warn("failed to close dependency", "err", err)
		}
	}
	d.closers = nil
}

// Load reads .env when present, then the environment, and validates the result.
func Load() (config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.Config{}, nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// BuildRun wires everything a summarization run uses.
func BuildRun() (*Deps, error) {
	d, err := BuildClusters()
	if err != nil {
		return nil, err
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"summarizer", func() (err error) { d.Summarizer, err = buildSummarizer(d.Config, d.Log); return }},
		{"toxicity scorer", func() (err error) { d.Scorer, err = buildScorer(d.Config, d.Log); return }},
		{"result store", func() (err error) { d.Store, err = d.buildStore(); return }},
		{"queue", func() (err error) { d.Queue, err = d.buildQueue(); return }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to initialize %s: %w", s.name, err)
		}
	}
	return d, nil
}

// BuildClusters wires the corpus and the embedder.
func BuildClusters() (*Deps, error) {
	cfg, log, err := Load()
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, Log: log}
	if d.Corpus, err = d.buildCorpus(); err != nil {
		return nil, fmt.Errorf("failed to initialize corpus: %w", err)
	}
	if d.Embedder, err = buildEmbedder(cfg, log); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return d, nil
}

// BuildExport wires the corpus and the result store.
func BuildExport() (*Deps, error) {
	cfg, log, err := Load()
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, Log: log}
	if d.Corpus, err = d.buildCorpus(); err != nil {
		return nil, fmt.Errorf("failed to initialize corpus: %w", err)
	}
	if d.Store, err = d.buildStore(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize result store: %w", err)
	}
	return d, nil
}

// BuildServe wires the result store only.
func BuildServe() (*Deps, error) {
	cfg, log, err := Load()
	if err != nil {
		return nil, err
	}
	d := &Deps{Config: cfg, Log: log}
	if d.Store, err = d.buildStore(); err != nil {
		return nil, fmt.Errorf("failed to initialize result store: %w", err)
	}
	return d, nil
}

// BuildSink wires the queue and the result store.
func BuildSink() (*Deps, error) {
	d, err := BuildServe()
	if err != nil {
		return nil, err
	}
	if d.Queue, err = d.buildQueue(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	if d.Queue == nil {
		d.Close()
		return nil, fmt.Errorf("QUEUE_PROVIDER=nats is required to consume records")
	}
	return d, nil
}

func (d *Deps) buildCorpus() (corpus.Source, error) {
	cfg := d.Config
	switch cfg.CorpusProvider {
	case "jsonl":
		d.Log.Info("using JSONL corpus", "path", cfg.CorpusPath)
		return corpus.NewJSONLSource(cfg.CorpusPath), nil
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when CORPUS_PROVIDER=postgres")
		}
		src, err := corpus.NewPostgresSource(cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres corpus: %w", err)
		}
		d.closers = append(d.closers, src.Close)
		d.Log.Info("using Postgres corpus")
		return src, nil
	default:
		return nil, fmt.Errorf("invalid CORPUS_PROVIDER: %s (valid options: jsonl, postgres)", cfg.CorpusProvider)
	}
}

func buildEmbedder(cfg config.Config, log *slog.Logger) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
		}
		embedder, err := embeddings.NewOpenAIEmbedder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI embedder: %w", err)
		}
		log.Info("using OpenAI embedder", "model", cfg.EmbeddingModel)
		return embedder, nil
	default:
		return nil, fmt.Errorf("invalid EMBEDDING_PROVIDER: %s (valid option: openai)", cfg.EmbeddingProvider)
	}
}

func buildSummarizer(cfg config.Config, log *slog.Logger) (*llm.SummaryClient, error) {
	baseURL := cfg.LLMBaseURL
	switch cfg.LLMProvider {
	case "groq":
		if baseURL == "" {
			baseURL = llm.GroqBaseURL
		}
	case "openai":
	default:
		return nil, fmt.Errorf("invalid LLM_PROVIDER: %s (valid options: groq, openai)", cfg.LLMProvider)
	}
	key := cfg.LLMKey()
	if key == "" {
		return nil, fmt.Errorf("LLM_API_KEY (or GROQ_API_KEY / OPENAI_API_KEY) is required")
	}
	backend, err := llm.NewOpenAIBackend(key, baseURL, openai.ChatModel(cfg.LLMModel))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat backend: %w", err)
	}
	log.Info("using chat backend", "provider", cfg.LLMProvider, "model", cfg.LLMModel)
	return llm.NewSummaryClient(backend,
		llm.WithMaxChars(cfg.MaxPromptChars),
		llm.WithMarker(cfg.SectionMarker),
		llm.WithCallDelay(cfg.CallDelay),
		llm.WithPolicy(retry.Policy{
			RateLimitCooldown: cfg.RateLimitCooldown,
			MaxRateLimitWait:  cfg.MaxRateLimitWait,
			ErrorDelay:        cfg.ErrorRetryDelay,
			ErrorRetries:      cfg.ErrorRetries,
		}),
		llm.WithLogger(log),
	), nil
}

func buildScorer(cfg config.Config, log *slog.Logger) (toxicity.Scorer, error) {
	switch cfg.ToxicityProvider {
	case "http":
		if cfg.ToxicityURL == "" {
			return nil, fmt.Errorf("TOXICITY_URL is required when TOXICITY_PROVIDER=http")
		}
		log.Info("using HTTP toxicity scorer", "url", cfg.ToxicityURL)
		return toxicity.NewHTTPScorer(cfg.ToxicityURL), nil
	case "none":
		log.Info("toxicity scoring disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid TOXICITY_PROVIDER: %s (valid options: http, none)", cfg.ToxicityProvider)
	}
}

func (d *Deps) buildStore() (cache.Store, error) {
	cfg := d.Config
	var (
		st  cache.Store
		err error
	)
	switch cfg.CacheProvider {
	case "file":
		st = cache.NewFileStore(cfg.CachePath)
	case "sqlite":
		st, err = cache.NewSQLiteStore(cfg.CachePath)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when CACHE_PROVIDER=redis")
		}
		st, err = cache.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.CacheKey)
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when CACHE_PROVIDER=postgres")
		}
		st, err = cache.NewPostgresStore(cfg.DBURL)
	case "none":
		st = cache.NewNoOpStore()
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: file, sqlite, redis, postgres, none)", cfg.CacheProvider)
	}
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, st.Close)
	d.Log.Info("using result store", "provider", cfg.CacheProvider)
	return st, nil
}

func (d *Deps) buildQueue() (queue.Queue, error) {
	cfg := d.Config
	switch cfg.QueueProvider {
	case "none":
		return nil, nil
	case "nats":
		if cfg.QueueURL == "" {
			return nil, fmt.Errorf("QUEUE_URL is required when QUEUE_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		d.closers = append(d.closers, func() error {
			return nc.Drain()
		})
		d.Log.Info("using NATS queue")
		return queue.NewNATS(d.Log, nc), nil
	default:
		return nil, fmt.Errorf("invalid QUEUE_PROVIDER: %s (valid options: none, nats)", cfg.QueueProvider)
	}
}
