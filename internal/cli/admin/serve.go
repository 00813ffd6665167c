package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/api/handlers"
	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/database"
	"github.com/mementolabs/memento/internal/events"
	"github.com/mementolabs/memento/internal/jobs"
	"github.com/mementolabs/memento/internal/llm"
	"github.com/mementolabs/memento/internal/repository"
	"github.com/mementolabs/memento/internal/server"
	"github.com/mementolabs/memento/internal/service"
	"github.com/mementolabs/memento/internal/storage"
	"github.com/mementolabs/memento/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the memento API server and the background ingest worker",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	thoughtRepo := repository.NewThoughtRepository(pool)
	retrievalRepo := repository.NewRetrievalRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	var publisher service.StatusPublisher = events.NoopPublisher{}
	if cfg.HasNATS() {
		natsPublisher, err := events.Connect(cfg.NATSURL)
		if err != nil {
			log.Printf("nats: connect failed (continuing without status events): %v", err)
		} else {
			defer natsPublisher.Close()
			publisher = natsPublisher
			log.Println("connected to NATS")
		}
	}

	var imageStore *storage.ImageStore
	if cfg.HasS3() {
		imageStore, err = storage.NewImageStore(ctx, storage.ImageStoreConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create image store: %w", err)
		}
		log.Printf("image store ready (bucket %q)", cfg.S3Bucket)
	}

	authSvc := service.NewAuthService(tokenRepo)

	var modelClient *llm.Client
	var ingestWorker *jobs.Worker
	var chatHandler *handlers.ChatHandler
	var searchHandler *handlers.SearchHandler
	var ingestionSvc *service.IngestionService

	if cfg.HasOpenAI() {
		modelClient = llm.NewClientWithConfig(llm.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
			VisionModel:         cfg.VisionModel,
			Timeout:             cfg.UpstreamTimeout,
		})

		var resolver service.ImageResolver
		if imageStore != nil {
			resolver = imageStore
		}
		ingestionSvc = service.NewIngestionService(thoughtRepo, modelClient, modelClient, resolver, publisher)

		processor := jobs.NewIngestWorker(thoughtRepo, ingestionSvc, cfg.WorkerBatchSize)
		ingestWorker = jobs.NewWorker("ingest", processor, cfg.WorkerPollInterval)
		go ingestWorker.Start(ctx)
		log.Println("ingest worker started")

		querySvc := service.NewQueryService(modelClient, retrievalRepo, modelClient)
		chatHandler = handlers.NewChatHandler(querySvc)
		searchHandler = handlers.NewSearchHandler(querySvc)
	} else {
		log.Println("OPENAI_API_KEY not set; ingestion, search and chat disabled")
		chatHandler = handlers.NewChatHandler(&noOpAnswerer{})
		searchHandler = handlers.NewSearchHandler(&noOpSearcher{})
	}

	var retrySvc handlers.RetryService
	if ingestionSvc != nil {
		retrySvc = ingestionSvc
	} else {
		retrySvc = &noOpRetryService{}
	}

	router := server.NewRouter(server.RouterConfig{
		TokenValidator: authSvc,
		ThoughtHandler: handlers.NewThoughtHandler(thoughtRepo, retrySvc),
		SearchHandler:  searchHandler,
		ChatHandler:    chatHandler,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ingestWorker != nil {
		ingestWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

type noOpSearcher struct{}

func (s *noOpSearcher) Search(ctx context.Context, query string, teamIDs []string) ([]*service.Match, error) {
	return nil, fmt.Errorf("search not configured: OPENAI_API_KEY required")
}

type noOpAnswerer struct{}

func (s *noOpAnswerer) Answer(ctx context.Context, question string, teamIDs []string) (string, error) {
	return "", fmt.Errorf("chat not configured: OPENAI_API_KEY required")
}

func (s *noOpAnswerer) AnswerStream(ctx context.Context, question string, teamIDs []string, handlers service.StreamHandlers) func() {
	if handlers.OnError != nil {
		handlers.OnError(fmt.Errorf("chat not configured: OPENAI_API_KEY required"))
	}
	return func() {}
}

type noOpRetryService struct{}

func (s *noOpRetryService) Retry(ctx context.Context, thoughtID string) error {
	return fmt.Errorf("ingestion not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
