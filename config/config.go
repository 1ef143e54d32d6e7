package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"campus-rag/internal/db"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chroma    ChromaConfig    `yaml:"chroma"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	LLM       LLMConfig       `yaml:"llm"`
	Search    SearchConfig    `yaml:"search"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	PublicURL       string        `yaml:"public_url"`
	RuntimeFailFast bool          `yaml:"runtime_fail_fast"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SessionSecret signs the user_id cookie. When empty a random key is
	// generated at startup and sessions do not survive a restart.
	SessionSecret string `yaml:"session_secret"`
}

// EmbeddingConfig selects the embedding provider: "http" for the
// sentence-transformers service or "openai" for an OpenAI-compatible API
type EmbeddingConfig struct {
	Provider string        `yaml:"provider"`
	Model    string        `yaml:"model"`
	URL      string        `yaml:"url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
	Retries  int           `yaml:"retries"`
}

type ChromaConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	Tenant     string        `yaml:"tenant"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RetrievalConfig struct {
	TopK               int     `yaml:"top_k"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	OverFetch          int     `yaml:"over_fetch"`
}

type LLMConfig struct {
	BaseURL       string  `yaml:"base_url"`
	APIKey        string  `yaml:"api_key"`
	Model         string  `yaml:"model"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float32 `yaml:"temperature"`
	TopP          float32 `yaml:"top_p"`
	MaxToolRounds int     `yaml:"max_tool_rounds"`
	Retries       uint    `yaml:"retries"`
}

type SearchConfig struct {
	APIKey   string        `yaml:"api_key"`
	EngineID string        `yaml:"engine_id"`
	Timeout  time.Duration `yaml:"timeout"`
}

// RedisConfig leaves Redis optional; Enabled=false runs without cache,
// history and rate limiting
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	FallbackTTL     time.Duration `yaml:"fallback_ttl"`
	HistoryTTL      time.Duration `yaml:"history_ttl"`
	HistoryCapacity int           `yaml:"history_capacity"`
}

type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			PublicURL:       "http://localhost:8080",
			ShutdownTimeout: 15 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider: "http",
			Model:    "firqaaa/indo-sentence-bert-base",
			URL:      "http://localhost:8001",
			Timeout:  30 * time.Second,
			Retries:  2,
		},
		Chroma: ChromaConfig{
			Port:       8000,
			Tenant:     "default_tenant",
			Database:   "default_database",
			Collection: "my_pdf_collection",
			Timeout:    30 * time.Second,
		},
		Retrieval: RetrievalConfig{
			TopK:               3,
			RelevanceThreshold: 0.75,
			OverFetch:          2,
		},
		LLM: LLMConfig{
			BaseURL:       "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:         "gemini-1.5-flash",
			MaxTokens:     256,
			Temperature:   0.3,
			TopP:          0.9,
			MaxToolRounds: 3,
			Retries:       3,
		},
		Search: SearchConfig{
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		Cache: CacheConfig{
			TTL:             time.Hour,
			FallbackTTL:     5 * time.Minute,
			HistoryTTL:      30 * time.Minute,
			HistoryCapacity: 10,
		},
		RateLimit: RateLimitConfig{
			Max:    5,
			Window: time.Minute,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// RAG_CONFIG_FILE (if set), then environment variables
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("RAG_CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays values from a YAML file onto cfg
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate reports every missing required setting at once
func (c *Config) Validate() error {
	var missing []string

	if strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "LLM_API_KEY")
	}
	if strings.TrimSpace(c.Chroma.Host) == "" {
		missing = append(missing, "CHROMA_HOST")
	}
	if c.Embedding.Provider == "openai" && strings.TrimSpace(c.Embedding.APIKey) == "" && strings.TrimSpace(c.LLM.APIKey) == "" {
		missing = append(missing, "EMBEDDING_API_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	switch c.Embedding.Provider {
	case "http", "openai":
	default:
		return fmt.Errorf("unknown EMBEDDING_PROVIDER %q (want http or openai)", c.Embedding.Provider)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("TOP_K_RETRIEVAL must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

// RedisClientConfig converts to the db layer's Redis settings
func (c *Config) RedisClientConfig() db.RedisConfig {
	rc := db.DefaultRedisConfig()
	rc.URL = c.Redis.URL
	rc.Host = c.Redis.Host
	rc.Port = c.Redis.Port
	rc.Password = c.Redis.Password
	rc.DB = c.Redis.DB
	if c.Redis.PoolSize > 0 {
		rc.PoolSize = c.Redis.PoolSize
	}
	return rc
}

// ChromaClientConfig converts to the db layer's ChromaDB settings
func (c *Config) ChromaClientConfig() db.ChromaDBConfig {
	return db.ChromaDBConfig{
		Host:     c.Chroma.Host,
		Port:     c.Chroma.Port,
		Tenant:   c.Chroma.Tenant,
		Database: c.Chroma.Database,
		Timeout:  c.Chroma.Timeout,
	}
}

func (c *Config) applyEnv() error {
	var errs []string

	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Server.PublicURL, "SERVER_PUBLIC_URL")
	setBool(&c.Server.RuntimeFailFast, "RUNTIME_FAIL_FAST", &errs)
	setString(&c.Server.SessionSecret, "SESSION_SECRET")

	setString(&c.Embedding.Provider, "EMBEDDING_PROVIDER")
	setString(&c.Embedding.Model, "EMBEDDING_MODEL_NAME")
	setString(&c.Embedding.URL, "EMBEDDING_URL")
	setString(&c.Embedding.APIKey, "EMBEDDING_API_KEY")

	setString(&c.Chroma.Host, "CHROMA_HOST")
	setInt(&c.Chroma.Port, "CHROMA_PORT", &errs)
	setString(&c.Chroma.Tenant, "CHROMA_TENANT")
	setString(&c.Chroma.Database, "CHROMA_DATABASE")
	setString(&c.Chroma.Collection, "COLLECTION_NAME")

	setInt(&c.Retrieval.TopK, "TOP_K_RETRIEVAL", &errs)
	if v := os.Getenv("RAG_RELEVANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Retrieval.RelevanceThreshold = f
		} else {
			errs = append(errs, "RAG_RELEVANCE_THRESHOLD")
		}
	}

	setString(&c.LLM.BaseURL, "LLM_BASE_URL")
	setString(&c.LLM.APIKey, "LLM_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL_NAME")
	setInt(&c.LLM.MaxToolRounds, "LLM_MAX_TOOL_ROUNDS", &errs)
	if v := os.Getenv("LLM_RETRIES"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			c.LLM.Retries = uint(n)
		} else {
			errs = append(errs, "LLM_RETRIES")
		}
	}

	setString(&c.Search.APIKey, "GOOGLE_SEARCH_API_KEY")
	setString(&c.Search.EngineID, "GOOGLE_SEARCH_ENGINE_ID")

	setBool(&c.Redis.Enabled, "REDIS_ENABLED", &errs)
	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Redis.Host, "REDIS_HOST")
	setInt(&c.Redis.Port, "REDIS_PORT", &errs)
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB", &errs)
	setInt(&c.Redis.PoolSize, "REDIS_POOL_SIZE", &errs)

	setDuration(&c.Cache.TTL, "CACHE_TTL", &errs)
	setDuration(&c.Cache.FallbackTTL, "CACHE_FALLBACK_TTL", &errs)
	setDuration(&c.Cache.HistoryTTL, "HISTORY_TTL", &errs)

	setInt(&c.RateLimit.Max, "RATE_LIMIT_MAX", &errs)
	setDuration(&c.RateLimit.Window, "RATE_LIMIT_WINDOW", &errs)

	if len(errs) > 0 {
		return fmt.Errorf("invalid values for: %s", strings.Join(errs, ", "))
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string, errs *[]string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			*errs = append(*errs, key)
		}
	}
}

func setBool(dst *bool, key string, errs *[]string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		} else {
			*errs = append(*errs, key)
		}
	}
}

// setDuration accepts Go durations ("90s", "1h") or a bare number of seconds
func setDuration(dst *time.Duration, key string, errs *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return
	}
	*errs = append(*errs, key)
}
