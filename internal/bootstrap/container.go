package bootstrap

import (
	"context"
	"fmt"
	"log"

	"coaching-rag-be/internal/config"
	"coaching-rag-be/internal/controller"
	"coaching-rag-be/internal/handler"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/pkg/mailer"
	"coaching-rag-be/internal/repository/memory"
	"coaching-rag-be/internal/repository/unitofwork"
	"coaching-rag-be/internal/service"
	"coaching-rag-be/pkg/embedding"
	embeddingOpenAI "coaching-rag-be/pkg/embedding/openai"
	"coaching-rag-be/pkg/events"
	"coaching-rag-be/pkg/llm/factory"
	"coaching-rag-be/pkg/lock"
	"coaching-rag-be/pkg/rag/history"
	"coaching-rag-be/pkg/rag/personalize"

	pktNats "coaching-rag-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	QueryController     controller.IQueryController
	SessionController   controller.ISessionController
	DocumentController  controller.IDocumentController
	PromptController    controller.IPromptController
	RetentionController controller.IRetentionController

	// Services used outside HTTP (CLI, schedulers)
	RetentionService service.IRetentionService

	// Background Services (Exposed for main.go to run)
	ConsumerService    service.IConsumerService
	RetentionScheduler *service.RetentionScheduler
	AuditHandler       *handler.AuditHandler

	Logger  logger.ILogger
	closers []func()
}

// NewEmbeddingProvider picks the provider named in config.
func NewEmbeddingProvider(ctx context.Context, cfg *config.Config) (embedding.EmbeddingProvider, error) {
	switch cfg.Ai.EmbeddingProvider {
	case "", "ollama":
		return embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.EmbeddingModel), nil
	case "gemini":
		return embedding.NewGeminiProvider(ctx, cfg.Keys.GoogleGemini, cfg.Ai.EmbeddingModel)
	case "openai":
		return embeddingOpenAI.NewProvider(cfg.Keys.OpenAI, cfg.Ai.OpenAIBaseURL, cfg.Ai.EmbeddingModel, cfg.Ai.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Ai.EmbeddingProvider)
	}
}

func newRedisLocker(cfg *config.Config) lock.Locker {
	if cfg.App.RedisURL == "" {
		log.Printf("[INFO] REDIS_URL not set, retention lock is process local")
		return lock.NewLocalLocker()
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Retention lock is process local", err)
		return lock.NewLocalLocker()
	}
	return lock.NewRedisLocker(rdb, "coaching-rag:lock:")
}

// NewRetentionService builds the sweeper with its optional collaborators. The CLI reuses it.
func NewRetentionService(uowFactory unitofwork.RepositoryFactory, cfg *config.Config, publisher events.Publisher, sysLogger logger.ILogger) service.IRetentionService {
	var emailService mailer.IEmailService
	if cfg.SMTP.Host != "" && len(cfg.SMTP.ReportRecipients) > 0 {
		emailService = mailer.NewEmailService(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Email,
			cfg.SMTP.Password,
			cfg.SMTP.SenderName,
			cfg.SMTP.ReportRecipients,
		)
	}

	return service.NewRetentionService(uowFactory, newRedisLocker(cfg), publisher, emailService, sysLogger, cfg.Retention)
}

// NewPublisher connects to NATS when configured. A nil result disables audit events.
func NewPublisher(cfg *config.Config) (*pktNats.Publisher, events.Publisher) {
	if cfg.App.NatsURL == "" {
		return nil, nil
	}
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		return nil, nil
	}
	return natsPub, natsPub
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	ctx := context.Background()

	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	c := &Container{Logger: sysLogger}

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Model clients
	embeddingProvider, err := NewEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[INFO] Using Embedding Provider: %s (%s)", embeddingProvider.Name(), cfg.Ai.EmbeddingModel)
	if closer, ok := embeddingProvider.(interface{ Close() error }); ok {
		c.closers = append(c.closers, func() { _ = closer.Close() })
	}
	embeddingClient := embedding.NewClient(embeddingProvider, cfg.Ai.CallTimeout, cfg.Ai.EmbeddingDimension)

	llmClient, err := factory.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// 4. Infrastructure
	natsPub, publisher := NewPublisher(cfg)
	if natsPub != nil {
		c.closers = append(c.closers, natsPub.Close)

		natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL, sysLogger)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
		} else {
			c.closers = append(c.closers, natsSub.Close)
			c.AuditHandler = handler.NewAuditHandler(natsSub, logger.NewIsolatedLogger("logs/audit.log"))
		}
	}

	catalog := memory.NewDocumentCatalog(uowFactory.NewUnitOfWork(ctx).DocumentRepository(), cfg.Rag.DocumentCacheTTL)

	pool := personalize.DefaultPool
	if cfg.Prompts.FallbackPoolFile != "" {
		loaded, err := personalize.LoadPool(cfg.Prompts.FallbackPoolFile)
		if err != nil {
			return nil, err
		}
		pool = loaded
	}

	// 5. Services
	conversationService := service.NewConversationService(uowFactory, sysLogger)
	queryService := service.NewQueryService(
		uowFactory,
		conversationService,
		embeddingClient,
		llmClient,
		catalog,
		history.NewLoader(uowFactory, cfg.Rag.HistoryWindow),
		publisher,
		sysLogger,
		service.QueryOptions{TopK: cfg.Rag.TopK, SimilarityFloor: cfg.Rag.SimilarityFloor},
	)
	publisherService := service.NewPublisherService(pubSub, cfg.Rag.IngestTopic)
	documentService := service.NewDocumentService(uowFactory, publisherService, sysLogger)
	promptService := service.NewPromptService(uowFactory, llmClient, pool, sysLogger)
	retentionService := NewRetentionService(uowFactory, cfg, publisher, sysLogger)

	c.ConsumerService = service.NewConsumerService(
		pubSub,
		cfg.Rag.IngestTopic,
		uowFactory,
		embeddingClient,
		catalog,
		publisher,
		sysLogger,
		service.ChunkingOptions{ChunkSize: cfg.Rag.ChunkSize, Overlap: cfg.Rag.ChunkOverlap},
	)
	c.RetentionService = retentionService
	c.RetentionScheduler = service.NewRetentionScheduler(retentionService, cfg.Retention.ScheduleInterval, sysLogger)

	// 6. Controllers
	c.QueryController = controller.NewQueryController(queryService)
	c.SessionController = controller.NewSessionController(conversationService)
	c.DocumentController = controller.NewDocumentController(documentService)
	c.PromptController = controller.NewPromptController(promptService)
	c.RetentionController = controller.NewRetentionController(retentionService)

	return c, nil
}

// Close releases broker connections and flushes logs.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	_ = c.Logger.Sync()
}
