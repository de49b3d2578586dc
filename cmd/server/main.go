package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-wizard/internal/ai"
	"story-wizard/internal/config"
	"story-wizard/internal/generation"
	"story-wizard/internal/handler"
	"story-wizard/internal/inflight"
	"story-wizard/internal/logger"
	"story-wizard/internal/messaging"
	"story-wizard/internal/notifier"
	"story-wizard/internal/repository"
	"story-wizard/internal/service"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

const cleanupInterval = 5 * time.Minute

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	log, err := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	zap.ReplaceGlobals(log)
	zap.L().Info("Logger initialized successfully", zap.String("logLevel", cfg.LogLevel))
	zap.L().Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("sessionStore", cfg.SessionStore),
		zap.String("generator", cfg.GeneratorType),
	)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	// --- Session Store ---
	var (
		sessionRepo repository.SessionRepository
		redisClient *redis.Client
	)
	switch cfg.SessionStore {
	case config.SessionStoreRedis:
		redisClient, err = setupRedis(cfg)
		if err != nil {
			zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		sessionRepo = repository.NewRedisSessionRepository(redisClient, cfg.SessionTTL, log)
	default:
		memRepo := repository.NewMemorySessionRepository(cfg.SessionTTL, log)
		go memRepo.RunCleanup(bgCtx, cleanupInterval)
		sessionRepo = memRepo
	}

	// --- Generators ---
	narrator, synthesizer, err := setupGenerators(cfg, log)
	if err != nil {
		zap.L().Fatal("Failed to initialize generators", zap.Error(err))
	}

	// --- Wizard Events ---
	var publisher messaging.EventPublisher = messaging.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		connectCtx, connectCancel := context.WithTimeout(bgCtx, 2*time.Minute)
		mqConn, err := messaging.ConnectRabbitMQ(connectCtx, cfg.RabbitMQURL, 20, 3*time.Second, log)
		connectCancel()
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		rabbitPublisher, err := messaging.NewRabbitMQEventPublisher(mqConn, cfg.WizardEventsQueue, log)
		if err != nil {
			zap.L().Fatal("Failed to create wizard event publisher", zap.Error(err))
		}
		defer rabbitPublisher.Close()
		publisher = rabbitPublisher
	} else {
		zap.L().Info("RABBITMQ_URL is empty, wizard events are not published")
	}

	// --- Dependency Injection ---
	hub := notifier.NewHub(cfg.GetAllowedOrigins(), log)
	hub.Start()

	registry := inflight.New(inflight.Config{
		MaxTasks: cfg.MaxConcurrentGenerations,
		Timeout:  cfg.GenerationTimeout,
	}, log)

	wizardSvc := service.NewWizardService(service.Deps{
		Repo:              sessionRepo,
		Narrator:          narrator,
		Synthesizer:       synthesizer,
		Inflight:          registry,
		Publisher:         publisher,
		Notifier:          hub,
		GenerationTimeout: cfg.GenerationTimeout,
		Logger:            log,
	})

	if cfg.IsProduction() && !cfg.SessionCookieSecure {
		zap.L().Warn("SESSION_COOKIE_SECURE is disabled in production, session cookie will be sent over plain HTTP")
	}
	cookies := handler.NewSessionCookies(cfg.SessionCookieName, cfg.SessionSecret, cfg.SessionTTL, cfg.SessionCookieSecure)
	wizardHandler := handler.NewWizardHandler(wizardSvc, cookies, hub, log)

	rateLimitMiddleware := setupRateLimiter(cfg, redisClient)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.RedirectTrailingSlash = true
	router.Use(handler.GinZapLogger(log))
	router.Use(gin.Recovery())
	router.SetHTMLTemplate(handler.Templates())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	allowedOrigins := cfg.GetAllowedOrigins()
	if len(allowedOrigins) > 0 {
		corsConfig.AllowOrigins = allowedOrigins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
		zap.L().Info("CORSAllowedOrigins not set, allowing default", zap.String("origin", "http://localhost:3000"))
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "X-Request-ID"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "inflight": registry.Active()})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	wizardHandler.RegisterRoutes(router, rateLimitMiddleware)

	// Метрики подключаются после регистрации маршрутов
	p.Use(router)

	// --- Start HTTP Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	// ?wait=true держит запрос до конца генерации
	if srv.WriteTimeout < cfg.GenerationTimeout+5*time.Second {
		srv.WriteTimeout = cfg.GenerationTimeout + 5*time.Second
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.ServerPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Cancelling in-flight generations...", zap.Int("active", registry.Active()))
	if err := registry.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("In-flight generations did not stop in time", zap.Error(err))
	}

	hub.Stop()
	stopBackground()

	zap.L().Info("Server exiting")
}

// setupGenerators выбирает реализацию генераторов по GENERATOR_TYPE.
func setupGenerators(cfg *config.Config, log *zap.Logger) (generation.NarrativeGenerator, generation.DiscussionSynthesizer, error) {
	if cfg.GeneratorType == config.GeneratorPlaceholder {
		p := generation.NewPlaceholder(cfg.PlaceholderNarrativeDelay, cfg.PlaceholderSynthesisDelay, log)
		return p, p, nil
	}

	catalog, err := generation.LoadCatalog(cfg.PromptCatalogPath)
	if err != nil {
		return nil, nil, err
	}
	client, err := ai.NewClient(ai.Config{
		Type:    cfg.GeneratorType,
		BaseURL: cfg.AIBaseURL,
		APIKey:  cfg.AIAPIKey,
		Model:   cfg.AIModel,
		Timeout: cfg.AITimeout,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	tokenizer := ai.NewTokenizer(cfg.AIModel, log)
	g := generation.NewAIGenerator(client, tokenizer, catalog, cfg.AIMaxPromptTokens, cfg.AITemperature, log)
	zap.L().Info("AI generator initialized",
		zap.String("type", cfg.GeneratorType),
		zap.String("model", cfg.AIModel),
		zap.String("catalog", cfg.PromptCatalogPath),
	)
	return g, g, nil
}

// setupRateLimiter ограничивает частоту запросов генерации по IP.
// С Redis счетчики общие для всех экземпляров, иначе хранятся в памяти.
func setupRateLimiter(cfg *config.Config, redisClient *redis.Client) gin.HandlerFunc {
	var store rateli.Store
	if redisClient != nil {
		store = rateli.RedisStore(&rateli.RedisOptions{
			RedisClient: redisClient,
			Rate:        time.Minute,
			Limit:       cfg.RateLimitPerMinute,
		})
	} else {
		store = rateli.InMemoryStore(&rateli.InMemoryOptions{
			Rate:  time.Minute,
			Limit: cfg.RateLimitPerMinute,
		})
	}

	mw := rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			zap.L().Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).Round(time.Second).String())
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
	zap.L().Info("Rate limiter middleware initialized", zap.Uint("perMinute", cfg.RateLimitPerMinute))
	return mw
}

// setupRedis создает клиента Redis с повторными попытками подключения.
func setupRedis(cfg *config.Config) (*redis.Client, error) {
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	zap.L().Info("Redis connection options configured", zap.String("address", redisOpts.Addr), zap.Int("db", redisOpts.DB))

	var lastErr error
	maxRetries := 20
	retryDelay := 3 * time.Second

	for i := 0; i < maxRetries; i++ {
		attempt := i + 1
		client := redis.NewClient(redisOpts)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		pingCancel()

		if err == nil {
			zap.L().Info("Successfully connected and pinged Redis", zap.Int("attempt", attempt))
			return client, nil
		}

		client.Close()
		lastErr = fmt.Errorf("unable to ping redis (attempt %d/%d): %w", attempt, maxRetries, err)
		zap.L().Warn("Redis ping failed, retrying...",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}
