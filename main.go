package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/cache"
	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/config"
	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/handlers"
	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories/casdoor"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/enrollment-service/internal/services"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
	"github.com/SAP-F-2025/enrollment-service/internal/utils"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
	"github.com/SAP-F-2025/enrollment-service/pkg"
)

const serviceName = "enrollment-service"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	if cfg.TracingEnabled {
		shutdownTracing, err := pkg.InitTracing(serviceName)
		if err != nil {
			log.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer shutdownTracing(context.Background())
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			logger.Warn("Redis unavailable, running without cache", "error", err)
			redisClient = nil
		}
	}

	repoManager := postgres.NewRepositoryManager(postgres.RepositoryConfig{
		DB:          db,
		RedisClient: redisClient,
		CasdoorConfig: casdoor.CasdoorConfig{
			Endpoint:         cfg.Casdoor.Endpoint,
			ClientID:         cfg.Casdoor.ClientID,
			ClientSecret:     cfg.Casdoor.ClientSecret,
			Certificate:      cfg.Casdoor.Cert,
			OrganizationName: cfg.Casdoor.Organization,
			ApplicationName:  cfg.Casdoor.Application,
		},
	})
	if err := repoManager.Initialize(); err != nil {
		log.Fatalf("Failed to initialize repositories: %v", err)
	}
	repo := repoManager.GetRepository()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics(registry)

	blobs, blobCloser, err := newBlobStore(context.Background(), cfg.Storage, cfg.Port, logger)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	fonts, err := certificate.LoadFontSet(certificate.FontPaths{
		Regular: cfg.Certificate.FontRegular,
		Bold:    cfg.Certificate.FontBold,
		Italic:  cfg.Certificate.FontItalic,
	})
	if err != nil {
		log.Fatalf("Failed to load certificate fonts: %v", err)
	}
	templates := certificate.NewHTTPTemplateSource(
		cfg.Certificate.TemplateURL,
		cfg.Certificate.FetchTimeout,
		cache.NewCacheManager(redisClient).Template,
		cfg.Certificate.TemplateCacheTTL,
	)

	publisher, err := newPublisher(cfg.Kafka, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	smConfig := services.DefaultServiceManagerConfig()
	smConfig.LogLevel = cfg.LogLevel
	smConfig.ReconcileConcurrency = cfg.ReconcileConcurrency

	serviceManager := services.NewServiceManager(db, repo, slogLogger, validator.New(), services.ServiceDependencies{
		Publisher: publisher,
		Metrics:   appMetrics,
		Blobs:     blobs,
		Templates: templates,
		Renderer:  certificate.NewRenderer(fonts),
	}, smConfig)
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	handlers.SetupMiddleware(router, logger, appMetrics, serviceName)

	auth := handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, repo.User(), logger)
	handlers.NewHandlerManager(serviceManager, logger, auth, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).
		SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopPoolStats := make(chan struct{})
	go recordPoolStats(db, appMetrics, stopPoolStats)

	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	close(stopPoolStats)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}
	if blobCloser != nil {
		if err := blobCloser.Close(); err != nil {
			logger.Error("Failed to close blob storage", "error", err)
		}
	}
	if err := repoManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to close repositories", "error", err)
	}

	logger.Info("Server exited")
}

// newBlobStore uses GCS when a bucket is configured, otherwise keeps
// certificates in memory for local runs.
func newBlobStore(ctx context.Context, cfg config.StorageConfig, port string, logger utils.Logger) (storage.BlobStore, io.Closer, error) {
	if cfg.Bucket == "" {
		base := cfg.PublicBaseURL
		if base == "" {
			base = fmt.Sprintf("http://localhost:%s/certificates", port)
		}
		logger.Warn("GCS_BUCKET not set, certificates are kept in memory", "base_url", base)
		return storage.NewMemoryStore(base), nil, nil
	}

	return storage.NewGCSStore(ctx, storage.GCSConfig{
		Bucket:          cfg.Bucket,
		CredentialsFile: cfg.CredentialsFile,
		PublicBaseURL:   cfg.PublicBaseURL,
	})
}

// newPublisher publishes to Kafka when brokers are configured and to an
// in-process channel otherwise.
func newPublisher(cfg config.KafkaConfig, logger *slog.Logger) (events.EventPublisher, error) {
	if cfg.Enabled() {
		return events.NewKafkaEventPublisher(cfg.Brokers, logger)
	}
	logger.Warn("KAFKA_BROKERS not set, events stay in process")
	publisher, _ := events.NewInProcessEventPublisher(logger)
	return publisher, nil
}

func recordPoolStats(db *gorm.DB, m *metrics.Metrics, stop <-chan struct{}) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.RecordDBPoolStats(sqlDB.Stats())
		case <-stop:
			return
		}
	}
}
