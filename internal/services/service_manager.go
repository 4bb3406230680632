package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/enrollment-service/internal/certificate"
	"github.com/SAP-F-2025/enrollment-service/internal/events"
	"github.com/SAP-F-2025/enrollment-service/internal/metrics"
	"github.com/SAP-F-2025/enrollment-service/internal/repositories"
	"github.com/SAP-F-2025/enrollment-service/internal/storage"
	"github.com/SAP-F-2025/enrollment-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	LogLevel slog.Level

	// Sibling creates/updates run concurrently up to this many per level
	ReconcileConcurrency int

	DefaultTimeout time.Duration
}

// ServiceDependencies are the collaborators outside the entity store
type ServiceDependencies struct {
	Publisher events.EventPublisher
	Metrics   *metrics.Metrics
	Blobs     storage.BlobStore
	Templates certificate.TemplateSource
	Renderer  DocumentRenderer
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	deps      ServiceDependencies
	config    ServiceManagerConfig

	// Service instances
	courseService       CourseService
	registrationService RegistrationService
	certificateService  CertificateService
	reportService       ReportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, deps ServiceDependencies, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		deps:      deps,
		config:    config,
	}
}

// DefaultServiceManagerConfig is used when nothing is configured
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		LogLevel:             slog.LevelInfo,
		ReconcileConcurrency: DefaultReconcileConcurrency,
		DefaultTimeout:       30 * time.Second,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.config.Validate(); err != nil {
		return err
	}
	if err := sm.deps.validate(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	reconciler := NewReconciler(sm.config.ReconcileConcurrency)

	sm.courseService = NewCourseService(sm.repo, sm.db, sm.logger, sm.validator, reconciler, sm.deps.Blobs, sm.deps.Metrics)
	sm.logger.Info("Course service initialized", "reconcile_concurrency", sm.config.ReconcileConcurrency)

	sm.registrationService = NewRegistrationService(sm.repo, sm.db, sm.logger, sm.validator, sm.deps.Publisher, sm.deps.Metrics)
	sm.logger.Info("Registration service initialized")

	sm.certificateService = NewCertificateService(sm.repo, sm.db, sm.logger, sm.validator,
		sm.deps.Templates, sm.deps.Renderer, sm.deps.Blobs, sm.deps.Publisher, sm.deps.Metrics)
	sm.logger.Info("Certificate service initialized")

	sm.reportService = NewReportService(sm.repo, sm.logger)
	sm.logger.Info("Report service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Course() CourseService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.courseService
}

func (sm *serviceManager) Registration() RegistrationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.registrationService
}

func (sm *serviceManager) Certificate() CertificateService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.certificateService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.reportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	ctx, cancel := sm.WithTimeout(ctx)
	defer cancel()

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== CONFIGURATION VALIDATION =====

// Validate validates the service manager configuration
func (config *ServiceManagerConfig) Validate() error {
	var errs []string

	if config.DefaultTimeout <= 0 {
		errs = append(errs, "default timeout must be positive")
	}

	if config.ReconcileConcurrency < 1 {
		errs = append(errs, "reconcile concurrency must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

func (d ServiceDependencies) validate() error {
	var errs []error
	if d.Publisher == nil {
		errs = append(errs, errors.New("event publisher is required"))
	}
	if d.Blobs == nil {
		errs = append(errs, errors.New("blob store is required"))
	}
	if d.Templates == nil {
		errs = append(errs, errors.New("certificate template source is required"))
	}
	if d.Renderer == nil {
		errs = append(errs, errors.New("certificate renderer is required"))
	}
	return errors.Join(errs...)
}
