package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eshaffer321/expense-matcher/internal/api/dto"
	"github.com/eshaffer321/expense-matcher/internal/api/handlers"
	"github.com/eshaffer321/expense-matcher/internal/api/middleware"
	"github.com/eshaffer321/expense-matcher/internal/application/service"
	"github.com/eshaffer321/expense-matcher/internal/domain/matcher"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/filestore"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/logging"
	"github.com/eshaffer321/expense-matcher/internal/infrastructure/storage"
)

// DefaultMaxUploadBytes caps receipt and statement uploads.
const DefaultMaxUploadBytes = 10 << 20

// Config holds API server configuration.
type Config struct {
	Port                      int
	AllowedOrigins            []string
	MaxUploadBytes            int64
	DefaultAutoMatchThreshold float64
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:                      8080,
		AllowedOrigins:            []string{"http://localhost:3000"},
		MaxUploadBytes:            DefaultMaxUploadBytes,
		DefaultAutoMatchThreshold: dto.DefaultAutoMatchThreshold,
	}
}

// Services are the application services the API exposes.
type Services struct {
	Imports      *service.ImportService
	Transactions *service.TransactionService
	Receipts     *service.ReceiptService
	Matches      *service.MatchService

	// Ping checks the database for the health endpoint
	Ping func(context.Context) error
}

// NewServices builds the application services over one repository and file store.
func NewServices(repo storage.Repository, files filestore.Store, m *matcher.Matcher, logger *slog.Logger, opts ...service.MatchOption) Services {
	if logger == nil {
		logger = slog.Default()
	}
	return Services{
		Imports:      service.NewImportService(repo, logger.With(logging.ComponentKey, "import")),
		Transactions: service.NewTransactionService(repo, logger),
		Receipts:     service.NewReceiptService(repo, files, logger),
		Matches:      service.NewMatchService(repo, m, logger.With(logging.ComponentKey, "match"), opts...),
		Ping:         repo.Ping,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)

	corsConfig := middleware.DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		corsConfig.AllowedOrigins = s.config.AllowedOrigins
	}
	s.router.Use(middleware.CORS(corsConfig))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check, also under /api for the web client
	healthHandler := handlers.NewHealthHandler(s.services.Ping)
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler.ServeHTTP)

		// Transactions
		txHandler := handlers.NewTransactionsHandler(s.services.Transactions, s.services.Imports, s.config.MaxUploadBytes, s.logger)
		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", txHandler.List)
			r.Post("/import", txHandler.Import)
			r.Get("/{id}", txHandler.Get)
			r.Put("/{id}", txHandler.Update)
			r.Delete("/{id}", txHandler.Delete)
		})

		// Receipts
		receiptsHandler := handlers.NewReceiptsHandler(s.services.Receipts, s.config.MaxUploadBytes, s.logger)
		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", receiptsHandler.List)
			r.Post("/upload", receiptsHandler.Upload)
			r.Get("/unmatched/list", receiptsHandler.Unmatched)
			r.Get("/{id}", receiptsHandler.Get)
			r.Put("/{id}", receiptsHandler.Update)
			r.Delete("/{id}", receiptsHandler.Delete)
			r.Get("/{id}/file", receiptsHandler.File)
			r.Post("/{id}/processing", receiptsHandler.MarkProcessing)
			r.Post("/{id}/extraction", receiptsHandler.RecordExtraction)
		})

		// Matches
		matchesHandler := handlers.NewMatchesHandler(s.services.Matches, s.config.DefaultAutoMatchThreshold, s.logger)
		r.Route("/matches", func(r chi.Router) {
			r.Get("/", matchesHandler.List)
			r.Post("/", matchesHandler.Create)
			r.Get("/pending", matchesHandler.Pending)
			r.Get("/stats", matchesHandler.Stats)
			r.Post("/auto-match", matchesHandler.AutoMatch)
			r.Post("/find/{receiptId}", matchesHandler.Find)
			r.Get("/{id}", matchesHandler.Get)
			r.Delete("/{id}", matchesHandler.Delete)
			r.Put("/{id}/confirm", matchesHandler.Confirm)
			r.Put("/{id}/reject", matchesHandler.Reject)
			r.Get("/{id}/events", matchesHandler.Events)
		})

		// Import runs (historical)
		importsHandler := handlers.NewImportsHandler(s.services.Imports, s.logger)
		r.Get("/imports", importsHandler.List)
		r.Get("/imports/{id}", importsHandler.Get)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
