package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"flightscout-service/internal/domain/repository"
	"flightscout-service/internal/infrastructure/config"
	"flightscout-service/internal/infrastructure/events"
	"flightscout-service/internal/infrastructure/lock"
	"flightscout-service/internal/infrastructure/persistence"
	"flightscout-service/internal/infrastructure/router"
	"flightscout-service/internal/interface/api"
	storeRepo "flightscout-service/internal/interface/repository"
	"flightscout-service/internal/scraper"
	"flightscout-service/internal/scraper/kiwi"
	"flightscout-service/internal/scraper/skyscanner"
	"flightscout-service/internal/usecase"
	"flightscout-service/pkg/logger"
	"flightscout-service/pkg/metrics"
)

// stores groups the repositories the service runs on
type stores struct {
	airports repository.AirportRepository
	flights  repository.FlightRepository
	bundles  repository.BundleRepository
	options  repository.BookingOptionRepository
	sessions repository.ScrapeSessionRepository
	logs     repository.ScrapeLogRepository
	close    func(ctx context.Context)
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.NewLogger("info").Fatal("Failed to load config", "error", err)
	}

	log := logger.NewLogger(cfg.App.LogLevel)
	defer log.Sync()
	log.Info("Starting FlightScout Service", "version", cfg.App.Version, "store", cfg.Store.Type)

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(strings.ReplaceAll(cfg.App.Name, "-", "_"))

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open stores", "error", err)
	}

	locker, closeLocker := newLocker(ctx, cfg, log)
	publisher := newPublisher(cfg, log)

	// Set up sources
	fetcher := scraper.NewFetcher(scraper.FetcherConfig{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Scraping.RequestTimeout,
		RatePerSecond: cfg.Scraping.RatePerSecond,
		RetryMax:      cfg.Scraping.RetryMax,
	}, log)

	registry := router.NewSourceRegistry(cfg.Scraping.Sources, log)
	registry.Register(kiwi.New(fetcher, kiwi.Config{
		BaseURL:         cfg.Scraping.KiwiBaseURL,
		DefaultCurrency: cfg.Scraping.DefaultCurrency,
	}, log))
	registry.Register(skyscanner.New(fetcher, skyscanner.Config{
		BaseURL:           cfg.Scraping.SkyscannerBaseURL,
		DefaultCurrency:   cfg.Scraping.DefaultCurrency,
		PollInterval:      cfg.Scraping.PollInterval,
		PollMaxIterations: cfg.Scraping.PollMaxIterations,
	}, log))
	if len(registry.Names()) == 0 {
		log.Fatal("No known source enabled", "sources", cfg.Scraping.Sources)
	}

	// Set up use cases
	coordinator := scraper.NewCoordinator(log, m, cfg.Scraping.SourceDeadline)
	pipeline := usecase.NewUpsertPipeline(st.airports, st.flights, st.bundles, st.options, locker, m, log)
	tracker := usecase.NewSessionTracker(st.sessions, publisher, log)
	orchestrator := usecase.NewSearchOrchestrator(coordinator, registry, pipeline, tracker, st.logs, log)
	offers := usecase.NewOfferQuery(st.bundles, st.options)

	handlers := api.NewHandlers(orchestrator, tracker, pipeline, offers, st.logs, log)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewRouter(handlers, cfg.Server.AllowedOrigins, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port, "sources", registry.Names())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	// let running searches store their results
	done := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached with searches still running")
	}

	cancel() // Cancel the context to stop all goroutines

	if err := publisher.Close(); err != nil {
		log.Error("Event publisher close error", "error", err)
	}
	closeLocker()
	st.close(shutdownCtx)

	log.Info("Service stopped gracefully")
}

// openStores connects the configured backends
func openStores(ctx context.Context, cfg *config.Config, log logger.Logger) (*stores, error) {
	if cfg.Store.Type == "memory" {
		log.Warn("Using in-memory store, data is lost on exit")
		mem := storeRepo.NewMemoryStore(storeRepo.DefaultAirports...)
		return &stores{
			airports: mem.Airports(),
			flights:  mem.Flights(),
			bundles:  mem.Bundles(),
			options:  mem.BookingOptions(),
			sessions: mem.Sessions(),
			logs:     mem.Logs(),
			close:    func(context.Context) {},
		}, nil
	}

	// Set up PostgreSQL connection
	log.Info("Connecting to PostgreSQL")
	gormDB, err := persistence.NewPostgresDB(cfg.Postgres.URI, cfg.Postgres.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	if cfg.Postgres.AutoMigrate {
		if err := storeRepo.MigrateFlightStore(gormDB); err != nil {
			return nil, err
		}
	}

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoDatabase(ctx, persistence.MongoOptions{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Username: cfg.Mongo.User,
		Password: cfg.Mongo.Password,
		AppName:  cfg.App.Name,
	})
	if err != nil {
		return nil, err
	}

	sessionRepo, err := storeRepo.NewMongoScrapeSessionRepository(ctx, db)
	if err != nil {
		return nil, err
	}
	logRepo, err := storeRepo.NewMongoScrapeLogRepository(ctx, db)
	if err != nil {
		return nil, err
	}

	return &stores{
		airports: storeRepo.NewGormAirportRepository(gormDB),
		flights:  storeRepo.NewGormFlightRepository(gormDB),
		bundles:  storeRepo.NewGormBundleRepository(gormDB),
		options:  storeRepo.NewGormBookingOptionRepository(gormDB),
		sessions: sessionRepo,
		logs:     logRepo,
		close: func(ctx context.Context) {
			if err := mongoClient.Disconnect(ctx); err != nil {
				log.Error("MongoDB disconnect error", "error", err)
			}
			if sqlDB, err := gormDB.DB(); err == nil {
				sqlDB.Close()
			}
		},
	}, nil
}

// newLocker returns a Redis lock when REDIS_ADDR is set, an in-process lock otherwise
func newLocker(ctx context.Context, cfg *config.Config, log logger.Logger) (usecase.Locker, func()) {
	if cfg.Redis.Addr == "" {
		return lock.NewLocalLocker(), func() {}
	}

	client, err := persistence.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	log.Info("Using Redis upsert lock", "addr", cfg.Redis.Addr)

	locker := lock.NewRedisLocker(client, "flightscout:lock:", cfg.Redis.LockTTL, cfg.Redis.LockWait)
	return locker, func() {
		if err := client.Close(); err != nil {
			log.Error("Redis close error", "error", err)
		}
	}
}

type closingPublisher interface {
	usecase.SessionPublisher
	Close() error
}

// newPublisher returns a Kafka publisher when brokers are configured
func newPublisher(cfg *config.Config, log logger.Logger) closingPublisher {
	var brokers []string
	for _, b := range cfg.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return events.NoopPublisher{}
	}

	log.Info("Publishing session events to Kafka", "brokers", brokers, "topic", cfg.Kafka.Topic)
	return events.NewKafkaPublisher(brokers, cfg.Kafka.Topic)
}
