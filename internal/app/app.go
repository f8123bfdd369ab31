package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"contrib.go.opencensus.io/integrations/ocsql"
	"golang.org/x/sync/errgroup"

	"github.com/t3-nico/boxlog-app-sub014/config"
	"github.com/t3-nico/boxlog-app-sub014/internal/database"
	"github.com/t3-nico/boxlog-app-sub014/internal/domain"
	httpHandler "github.com/t3-nico/boxlog-app-sub014/internal/http"
	"github.com/t3-nico/boxlog-app-sub014/internal/http/middleware"
	"github.com/t3-nico/boxlog-app-sub014/internal/repository"
	"github.com/t3-nico/boxlog-app-sub014/internal/service/recovery"
	"github.com/t3-nico/boxlog-app-sub014/pkg/cache"
	"github.com/t3-nico/boxlog-app-sub014/pkg/logger"
	"github.com/t3-nico/boxlog-app-sub014/pkg/ratelimiter"
	"github.com/t3-nico/boxlog-app-sub014/pkg/tracing"
)

const (
	cacheCleanupInterval   = time.Minute
	limiterCleanupInterval = time.Minute
	reportPruneInterval    = time.Hour
)

// AppInterface defines the interface for the App
type AppInterface interface {
	Initialize() error
	Start() error
	Shutdown(ctx context.Context) error

	// Getters for app components accessed in tests
	GetConfig() *config.Config
	GetLogger() logger.Logger
	GetMux() *http.ServeMux
	GetDB() *sql.DB
	GetOrchestrator() *recovery.Orchestrator
	GetErrorReportRepository() domain.ErrorReportRepository

	// Server status methods
	IsServerCreated() bool
	WaitForServerStart(ctx context.Context) bool

	// Methods for initialization steps
	InitTracing() error
	InitDB() error
	InitRepositories() error
	InitServices() error
	InitHandlers() error

	// Graceful shutdown methods
	SetShutdownTimeout(timeout time.Duration)
	GetActiveRequestCount() int64
	GetShutdownContext() context.Context
}

// App encapsulates the application dependencies and configuration
type App struct {
	config *config.Config
	logger logger.Logger
	db     *sql.DB

	// Repositories
	reportRepo domain.ErrorReportRepository

	// Services
	orchestrator *recovery.Orchestrator
	staleCache   *cache.InMemoryCache
	limiter      *ratelimiter.RateLimiter

	// HTTP handlers
	mux    *http.ServeMux
	server *http.Server

	// Server synchronization
	serverMu      sync.RWMutex
	serverStarted chan struct{}

	// Graceful shutdown management
	shutdownCtx     context.Context
	shutdownCancel  context.CancelFunc
	activeRequests  int64          // atomic counter for active HTTP requests
	requestWg       sync.WaitGroup // wait group for active requests
	shutdownTimeout time.Duration
}

// AppOption defines a functional option for configuring the App
type AppOption func(*App)

// WithMockDB configures the app to use a mock database
func WithMockDB(db *sql.DB) AppOption {
	return func(a *App) {
		a.db = db
	}
}

// WithLogger sets a custom logger
func WithLogger(logger logger.Logger) AppOption {
	return func(a *App) {
		a.logger = logger
	}
}

// NewApp creates a new application instance
func NewApp(cfg *config.Config, opts ...AppOption) AppInterface {
	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())

	app := &App{
		config:          cfg,
		logger:          logger.NewLoggerWithLevel(cfg.LogLevel),
		mux:             http.NewServeMux(),
		serverStarted:   make(chan struct{}),
		shutdownCtx:     shutdownCtx,
		shutdownCancel:  shutdownCancel,
		shutdownTimeout: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(app)
	}

	return app
}

// InitTracing initializes OpenCensus tracing and registers the recovery views
func (a *App) InitTracing() error {
	if err := tracing.InitTracing(&a.config.Tracing, a.logger, recovery.Views...); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return nil
}

// InitDB connects to the error report database. Without error reports
// enabled the app runs without a database.
func (a *App) InitDB() error {
	if !a.config.Database.ErrorReportsEnabled && a.db == nil {
		a.logger.Info("Error reports disabled, skipping database")
		return nil
	}

	if a.db == nil {
		a.logger.WithFields(map[string]interface{}{
			"host":    a.config.Database.Host,
			"port":    a.config.Database.Port,
			"user":    a.config.Database.User,
			"dbname":  a.config.Database.DBName,
			"sslmode": a.config.Database.SSLMode,
		}).Info("Connecting to database")

		db, err := database.Connect(a.config)
		if err != nil {
			return err
		}
		a.db = db
	}

	if err := database.InitializeDatabase(a.db); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	a.logger.Info("Error report storage ready")
	return nil
}

// InitRepositories initializes the repositories backed by the database
func (a *App) InitRepositories() error {
	if a.db != nil {
		a.reportRepo = repository.NewErrorReportRepository(a.db)
	}
	return nil
}

// InitServices builds the recovery orchestrator and its side channels
func (a *App) InitServices() error {
	rc := a.config.Recovery

	a.staleCache = cache.NewInMemoryCache(cacheCleanupInterval)
	a.limiter = ratelimiter.NewRateLimiter(ratelimiter.WithCleanupInterval(limiterCleanupInterval))

	notifier := recovery.NewThrottledNotifier(
		recovery.NewLogNotifier(a.logger),
		a.limiter,
		rc.NoticeLimit,
		rc.NoticeWindow,
		a.logger,
	)

	opts := []recovery.Option{
		recovery.WithLogger(a.logger),
		recovery.WithStaleCache(a.staleCache, rc.StaleCacheTTL),
		recovery.WithNotifier(notifier),
		recovery.WithReporter(recovery.NewLogReporter(a.logger)),
		recovery.WithFallbackTimeout(rc.FallbackTimeout),
	}
	if a.reportRepo != nil {
		opts = append(opts, recovery.WithReportRepository(a.reportRepo))
	}

	a.orchestrator = recovery.NewOrchestrator(opts...)
	return nil
}

// InitHandlers registers the HTTP routes
func (a *App) InitHandlers() error {
	// Create a new ServeMux to avoid route conflicts on restart
	a.mux = http.NewServeMux()

	auth := middleware.NewAdminAuth(a.config.Security.AdminJWTSecret)
	recoveryHandler := httpHandler.NewRecoveryHandler(a.orchestrator, a.reportRepo, auth, a.logger)
	recoveryHandler.RegisterRoutes(a.mux)

	return nil
}

// Start starts the HTTP server
func (a *App) Start() error {
	var handler http.Handler = a.mux

	// Apply graceful shutdown middleware first (outermost)
	handler = a.gracefulShutdownMiddleware(handler)

	if a.config.Tracing.Enabled {
		handler = middleware.TracingMiddleware(handler)
		a.logger.Info("OpenCensus tracing middleware enabled")
	}

	addr := fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port)
	a.logger.WithField("address", addr).Info("Server starting on " + addr)

	a.serverMu.Lock()
	if a.serverStarted != nil {
		close(a.serverStarted)
	}
	a.serverStarted = make(chan struct{})

	a.server = &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	serverStarted := a.serverStarted
	a.serverMu.Unlock()

	close(serverStarted)

	if a.reportRepo != nil && a.config.Database.ErrorReportsRetention > 0 {
		go a.runReportPruner(a.shutdownCtx, reportPruneInterval)
	}

	return a.server.ListenAndServe()
}

// runReportPruner deletes expired error reports until ctx is done
func (a *App) runReportPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.pruneErrorReports(ctx); err != nil {
			a.logger.WithField("error", err.Error()).Error("Failed to prune error reports")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pruneErrorReports deletes reports older than the configured retention
func (a *App) pruneErrorReports(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-a.config.Database.ErrorReportsRetention)
	deleted, err := a.reportRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		a.logger.WithField("deleted", deleted).Info("Pruned expired error reports")
	}
	return deleted, nil
}

// Shutdown gracefully shuts down the server
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Starting graceful shutdown...")

	// Signal shutdown to all components
	a.shutdownCancel()

	a.serverMu.RLock()
	server := a.server
	a.serverMu.RUnlock()

	if server == nil {
		a.logger.Info("No server to shutdown")
		return a.cleanupResources(ctx)
	}

	a.logger.WithField("active_requests", a.getActiveRequestCount()).Info("Active requests at shutdown start")

	shutdownTimeout := a.shutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < shutdownTimeout {
			shutdownTimeout = remaining - time.Second
			if shutdownTimeout < 0 {
				shutdownTimeout = 0
			}
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	serverShutdownDone := make(chan error, 1)
	go func() {
		a.logger.WithField("timeout", shutdownTimeout.String()).Info("Starting HTTP server shutdown")
		serverShutdownDone <- server.Shutdown(shutdownCtx)
	}()

	requestsDone := make(chan struct{})
	go func() {
		a.requestWg.Wait()
		close(requestsDone)
	}()

	var shutdownErr error
	select {
	case err := <-serverShutdownDone:
		shutdownErr = err
		a.logger.Info("HTTP server shutdown completed")
	case <-shutdownCtx.Done():
		a.logger.Warn("Shutdown timeout reached")
		shutdownErr = fmt.Errorf("shutdown timeout exceeded")
	}

	if shutdownErr == nil {
		select {
		case <-requestsDone:
		case <-time.After(2 * time.Second):
			if activeCount := a.getActiveRequestCount(); activeCount > 0 {
				a.logger.WithField("active_requests", activeCount).Warn("Some requests still active, proceeding with shutdown")
			}
		}
	}

	if cleanupErr := a.cleanupResources(ctx); cleanupErr != nil {
		a.logger.WithField("error", cleanupErr.Error()).Error("Error during resource cleanup")
		if shutdownErr == nil {
			shutdownErr = cleanupErr
		}
	}

	if shutdownErr != nil {
		a.logger.WithField("error", shutdownErr.Error()).Error("Graceful shutdown completed with errors")
	} else {
		a.logger.Info("Graceful shutdown completed successfully")
	}

	return shutdownErr
}

// cleanupResources stops background workers and closes the database
func (a *App) cleanupResources(ctx context.Context) error {
	a.logger.Info("Cleaning up resources...")

	g, _ := errgroup.WithContext(ctx)

	if a.staleCache != nil {
		g.Go(func() error {
			a.staleCache.Stop()
			return nil
		})
	}
	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Stop()
			return nil
		})
	}
	if a.db != nil {
		g.Go(func() error {
			if a.config.Tracing.Enabled {
				if err := ocsql.RecordStats(a.db, 5*time.Second); err != nil {
					a.logger.WithField("error", err.Error()).Error("Failed to record final database stats for tracing")
				}
			}
			a.logger.Info("Closing database connection")
			if err := a.db.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	a.logger.Info("Resource cleanup completed")
	return nil
}

// IsServerCreated safely checks if the server has been created
func (a *App) IsServerCreated() bool {
	a.serverMu.RLock()
	defer a.serverMu.RUnlock()
	return a.server != nil
}

// WaitForServerStart waits for the server to be created and initialized.
// Returns false if ctx expires first.
func (a *App) WaitForServerStart(ctx context.Context) bool {
	a.serverMu.RLock()
	started := a.serverStarted
	a.serverMu.RUnlock()

	if started == nil {
		a.logger.Error("serverStarted channel is nil - server initialization error")
		<-ctx.Done()
		return false
	}

	select {
	case <-started:
		return a.IsServerCreated()
	case <-ctx.Done():
		return false
	}
}

// Initialize sets up all components of the application
func (a *App) Initialize() error {
	a.logger.WithField("version", a.config.Version).Info("Starting recovery API")

	if err := a.InitTracing(); err != nil {
		return err
	}

	if err := a.InitDB(); err != nil {
		return err
	}

	if err := a.InitRepositories(); err != nil {
		return err
	}

	if err := a.InitServices(); err != nil {
		return err
	}

	if err := a.InitHandlers(); err != nil {
		return err
	}

	a.logger.Info("Application successfully initialized")
	return nil
}

// GetConfig returns the app's configuration
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetLogger returns the app's logger
func (a *App) GetLogger() logger.Logger {
	return a.logger
}

// GetMux returns the app's HTTP multiplexer
func (a *App) GetMux() *http.ServeMux {
	return a.mux
}

// GetDB returns the app's database connection
func (a *App) GetDB() *sql.DB {
	return a.db
}

func (a *App) GetOrchestrator() *recovery.Orchestrator {
	return a.orchestrator
}

func (a *App) GetErrorReportRepository() domain.ErrorReportRepository {
	return a.reportRepo
}

func (a *App) incrementActiveRequests() {
	atomic.AddInt64(&a.activeRequests, 1)
	a.requestWg.Add(1)
}

func (a *App) decrementActiveRequests() {
	atomic.AddInt64(&a.activeRequests, -1)
	a.requestWg.Done()
}

func (a *App) getActiveRequestCount() int64 {
	return atomic.LoadInt64(&a.activeRequests)
}

// GetActiveRequestCount returns the current number of active requests
func (a *App) GetActiveRequestCount() int64 {
	return a.getActiveRequestCount()
}

// SetShutdownTimeout sets the timeout for graceful shutdown
func (a *App) SetShutdownTimeout(timeout time.Duration) {
	a.shutdownTimeout = timeout
	a.logger.WithField("shutdown_timeout", timeout.String()).Info("Shutdown timeout configured")
}

// GetShutdownContext returns the context cancelled when shutdown starts
func (a *App) GetShutdownContext() context.Context {
	return a.shutdownCtx
}

func (a *App) isShuttingDown() bool {
	select {
	case <-a.shutdownCtx.Done():
		return true
	default:
		return false
	}
}

// gracefulShutdownMiddleware tracks active requests and rejects new ones
// once shutdown has started
func (a *App) gracefulShutdownMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isShuttingDown() {
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}

		a.incrementActiveRequests()
		defer a.decrementActiveRequests()

		next.ServeHTTP(w, r)
	})
}

// Ensure App implements AppInterface
var _ AppInterface = (*App)(nil)
