package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"campus-rag/config"
	"campus-rag/internal/db"
	"campus-rag/internal/handlers"
	"campus-rag/internal/middleware"
	"campus-rag/internal/repositories"
	"campus-rag/internal/routes"
	"campus-rag/internal/services"

	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"
	"github.com/sashabaranov/go-openai"
	httpSwagger "github.com/swaggo/http-swagger"
)

// App holds the long-lived clients and services shared by the HTTP server
// and the CLI
type App struct {
	Config     *config.Config
	AskService *services.AskService
	Runtime    *services.RuntimeProvider

	redis         *db.RedisClient
	chroma        *db.ChromaDBClient
	validator     *services.QueryValidator
	rateLimiter   repositories.RateLimiter
	identityCodec *securecookie.SecureCookie
	logger        *log.Logger
}

// NewApp connects to the stores and assembles the answer pipeline. The
// runtime components (embedder, vector index, generation backend) are built
// lazily on first use unless RuntimeFailFast is set.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(os.Stdout, "[SERVER] ", log.LstdFlags)
	ragLogger := log.New(os.Stdout, "[RAG] ", log.LstdFlags)
	cacheLogger := log.New(os.Stdout, "[CACHE] ", log.LstdFlags)

	app := &App{Config: cfg, logger: logger}

	// Initialize Redis (optional)
	var cacheRepo repositories.ResponseCacheRepository
	var historyRepo repositories.ConversationRepository
	if redisClient := initializeRedis(ctx, cfg, logger); redisClient != nil {
		app.redis = redisClient
		cacheRepo = repositories.NewRedisResponseCacheRepository(redisClient.GetClient())
		historyRepo = repositories.NewRedisConversationRepository(redisClient.GetClient())
		app.rateLimiter = repositories.NewRedisRateLimiter(redisClient.GetClient(), cfg.RateLimit.Max, cfg.RateLimit.Window)
	}

	// Initialize ChromaDB client; reachability is checked by /health, not here
	chromaConfig := cfg.ChromaClientConfig()
	logger.Printf("Using ChromaDB at %s:%d (collection: %s)", chromaConfig.Host, chromaConfig.Port, cfg.Chroma.Collection)
	app.chroma = db.NewChromaDBClient(chromaConfig)

	app.identityCodec = middleware.NewIdentityCodec(sessionKey(cfg, logger))

	normalizer := services.NewQueryNormalizer()
	app.Runtime = services.NewRuntimeProvider(newRuntimeFactory(cfg, app.chroma, normalizer, ragLogger), ragLogger)

	cache := services.NewResponseCache(cacheRepo, cfg.Embedding.Model, cfg.Chroma.Collection, cacheLogger)
	history := services.NewConversationHistory(historyRepo, cfg.Cache.HistoryCapacity, cfg.Cache.HistoryTTL, cacheLogger)

	app.validator = services.NewQueryValidator(services.DefaultMinQueryLength, services.DefaultMaxQueryLength)
	app.AskService = services.NewAskService(
		app.validator,
		normalizer,
		cache,
		history,
		app.Runtime,
		services.AskConfig{
			TopK:               cfg.Retrieval.TopK,
			RelevanceThreshold: cfg.Retrieval.RelevanceThreshold,
			PromptTurns:        services.DefaultPromptTurns,
			CacheTTL:           cfg.Cache.TTL,
			FallbackCacheTTL:   cfg.Cache.FallbackTTL,
		},
		ragLogger,
	)

	if cfg.Server.RuntimeFailFast {
		if _, err := app.Runtime.Get(ctx); err != nil {
			app.Close()
			return nil, err
		}
	}

	logger.Println("✅ Answer pipeline initialized")
	return app, nil
}

// NewServer builds the HTTP server around app
func NewServer(app *App) *http.Server {
	logger := app.logger

	var redisCheck handlers.HealthCheck
	if app.redis != nil {
		redisCheck = app.redis.Ping
	}

	h := &routes.Handlers{
		Ask:    handlers.NewAskHandler(app.AskService, app.validator, app.rateLimiter, logger),
		Health: handlers.NewHealthHandler(redisCheck, app.chroma.Heartbeat, app.Runtime, logger),
	}

	router := mux.NewRouter()
	router.Use(middleware.Logger(logger), middleware.Identity(app.identityCodec))
	routes.RegisterRoutes(router, h)

	// Add Swagger endpoints
	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL(strings.TrimRight(app.Config.Server.PublicURL, "/")+"/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("none"),
		httpSwagger.DomID("swagger-ui"),
	))

	return &http.Server{
		Addr:              app.Config.Server.Addr,
		Handler:           middleware.CORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close releases store connections
func (a *App) Close() {
	if err := a.Runtime.Close(); err != nil {
		a.logger.Printf("Failed to close runtime components: %v", err)
	}
	if a.chroma != nil {
		a.chroma.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Printf("Failed to close Redis: %v", err)
		}
	}
}

// sessionKey returns the cookie signing key, generating a random one when
// none is configured
func sessionKey(cfg *config.Config, logger *log.Logger) []byte {
	if cfg.Server.SessionSecret != "" {
		return []byte(cfg.Server.SessionSecret)
	}
	logger.Println("⚠️  SESSION_SECRET not set - using a random key, conversations reset on restart")
	return securecookie.GenerateRandomKey(32)
}

// initializeRedis returns nil when Redis is disabled or cannot be configured.
// An unreachable server is kept; callers degrade per request.
func initializeRedis(ctx context.Context, cfg *config.Config, logger *log.Logger) *db.RedisClient {
	if !cfg.Redis.Enabled {
		logger.Println("⚠️  Redis disabled - cache, history and rate limiting are off")
		return nil
	}

	redisConfig := cfg.RedisClientConfig()
	redisClient, err := db.NewRedisClient(redisConfig)
	if err != nil {
		logger.Printf("❌ Failed to create Redis client: %v", err)
		logger.Println("   Cache, history and rate limiting will be disabled")
		return nil
	}
	logger.Printf("Connecting to Redis: %s (DB: %d)", redisClient.Addr(), redisConfig.DB)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx); err != nil {
		logger.Printf("❌ Redis connection failed: %v", err)
		logger.Println("   Continuing; requests will run without cache until Redis is reachable")
		logger.Println("   Hint: Ensure Redis is running (docker run -d -p 6379:6379 redis:7-alpine)")
		return redisClient
	}

	logger.Println("✅ Redis connected successfully")
	return redisClient
}

// newRuntimeFactory builds the embedder, vector repository, generation
// backend and orchestrator. It only constructs clients; an unreachable
// vector store shows up as empty retrievals.
func newRuntimeFactory(cfg *config.Config, chroma *db.ChromaDBClient, normalizer *services.QueryNormalizer, logger *log.Logger) services.RuntimeFactory {
	return func(ctx context.Context) (*services.RuntimeComponents, error) {
		embedder, err := newEmbedder(cfg)
		if err != nil {
			return nil, err
		}

		vectorRepo := repositories.NewChromaVectorRepository(chroma, cfg.Chroma.Collection)

		llmConfig := openai.DefaultConfig(cfg.LLM.APIKey)
		if cfg.LLM.BaseURL != "" {
			llmConfig.BaseURL = cfg.LLM.BaseURL
		}
		backend := openai.NewClientWithConfig(llmConfig)

		orchestrator := services.NewAnswerOrchestrator(backend, services.OrchestratorConfig{
			Model:         cfg.LLM.Model,
			MaxTokens:     cfg.LLM.MaxTokens,
			Temperature:   cfg.LLM.Temperature,
			TopP:          cfg.LLM.TopP,
			MaxToolRounds: cfg.LLM.MaxToolRounds,
			RetryAttempts: cfg.LLM.Retries,
			RetryDelay:    services.DefaultRetryDelay,
		}, logger)

		if cfg.Search.APIKey != "" && cfg.Search.EngineID != "" {
			searcher := services.NewGoogleSearchTool(cfg.Search.APIKey, cfg.Search.EngineID, cfg.Search.Timeout, logger)
			orchestrator.RegisterTool(services.WebSearchToolDefinition(), services.WebSearchToolFunc(searcher))
		} else {
			logger.Println("⚠️  Google search credentials not set - web_search tool disabled")
		}

		logger.Printf("Runtime: embedder=%s (%s), collection=%s, model=%s",
			cfg.Embedding.Provider, embedder.Model(), vectorRepo.CollectionName(), cfg.LLM.Model)

		return &services.RuntimeComponents{
			Embedder:     embedder,
			VectorIndex:  vectorRepo,
			Backend:      backend,
			Retriever:    services.NewRetriever(normalizer, embedder, vectorRepo, cfg.Retrieval.OverFetch, logger),
			Orchestrator: orchestrator,
		}, nil
	}
}

func newEmbedder(cfg *config.Config) (services.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "http":
		return services.NewHTTPEmbedder(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Timeout, cfg.Embedding.Retries), nil
	case "openai":
		apiKey := cfg.Embedding.APIKey
		if apiKey == "" {
			apiKey = cfg.LLM.APIKey
		}
		baseURL := cfg.Embedding.URL
		if baseURL == "" {
			baseURL = cfg.LLM.BaseURL
		}
		return services.NewOpenAIEmbedder(apiKey, baseURL, cfg.Embedding.Model), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}
