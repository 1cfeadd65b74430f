// FilePath: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sauqing9/api-sitras/api"
	"github.com/sauqing9/api-sitras/api/resources"
	"github.com/sauqing9/api-sitras/internal/cleanup"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/hubservice"
	"github.com/sauqing9/api-sitras/internal/mlproxy"
	"github.com/sauqing9/api-sitras/internal/monitoring"
	"github.com/sauqing9/api-sitras/internal/repository"
	"github.com/sauqing9/api-sitras/internal/repository/cache"
	"github.com/sauqing9/api-sitras/internal/repository/files"
	"github.com/sauqing9/api-sitras/internal/repository/mongostore"
	"github.com/sauqing9/api-sitras/internal/repository/sqlstore"
	nuts "github.com/vaudience/go-nuts"
)

// Server represents our HTTP server
type Server struct {
	router     *api.Router
	config     *config.Config
	srv        *http.Server
	hubservice *hubservice.HubService
	monitoring *monitoring.Service
	stopSweep  context.CancelFunc
}

// New creates a new server instance
func New(cfg *config.Config) *Server {
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		config: cfg,
		srv:    srv,
	}
}

// Start connects all dependencies, begins listening and blocks until shutdown
func (s *Server) Start() error {
	if err := s.initialize(); err != nil {
		return err
	}
	s.startRetention()

	go func() {
		nuts.L.Infof("[Server] Starting server on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nuts.L.Errorf("[Server] Error starting server: %v", err)
			os.Exit(1)
		}
	}()

	return s.waitForShutdown()
}

// initialize connects the store and the optional collaborators and builds the router.
// Any connect error is fatal to startup.
func (s *Server) initialize() error {
	svc, err := initializeHubService(s.config)
	if err != nil {
		return err
	}
	s.hubservice = svc

	s.monitoring, err = monitoring.NewService(monitoring.Config{
		AMQPURL:  s.config.Events.AMQPURL,
		Exchange: s.config.Events.Exchange,
	})
	if err != nil {
		_ = svc.Store.Close()
		return fmt.Errorf("failed to initialize monitoring: %w", err)
	}

	s.setupEventHandlers()
	s.setupRoutes()
	return nil
}

// waitForShutdown waits for interrupt signal and gracefully shuts down the server
func (s *Server) waitForShutdown() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	nuts.L.Infof("[Server] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(ctx)
	s.close()
	if err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	nuts.L.Infof("[Server] Server shut down successfully")
	return nil
}

func (s *Server) close() {
	if s.stopSweep != nil {
		s.stopSweep()
	}
	if s.hubservice != nil {
		if err := s.hubservice.Store.Close(); err != nil {
			nuts.L.Errorf("[Server] Error closing store: %v", err)
		}
	}
	if s.monitoring != nil {
		if err := s.monitoring.Close(); err != nil {
			nuts.L.Errorf("[Server] Error closing event publisher: %v", err)
		}
	}
}

// setupRoutes builds the API router and installs the metrics hook
func (s *Server) setupRoutes() {
	s.router = api.NewRouter(s.hubservice, api.RouterOptions{
		AllowedOrigins: s.config.Server.AllowedOrigins,
		History: resources.HistoryLimits{
			Default: s.config.History.DefaultLimit,
			Max:     s.config.History.MaxLimit,
		},
		AccessLog: true,
	})
	s.router.Resources().SetMetrics(s.handleMetrics())
	s.srv.Handler = s.router
}

// handleMetrics reports event counters since startup
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := resources.Response{Success: true, Data: s.monitoring.GetEventMetrics()}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(body); err != nil {
			nuts.L.Errorf("[Server] Failed to encode metrics: %v", err)
		}
	}
}

// setupEventHandlers forwards pipeline and cleanup events to monitoring
func (s *Server) setupEventHandlers() {
	events := []string{
		hubservice.EventRawCreated,
		hubservice.EventCalibrationSucceeded,
		hubservice.EventCalibrationFailed,
		hubservice.EventRecommendationCreated,
		hubservice.EventRecommendationFailed,
	}
	for _, target := range []cleanup.Target{
		cleanup.TargetRaw, cleanup.TargetCalibrated, cleanup.TargetRecommendations, cleanup.TargetManual,
	} {
		events = append(events, cleanup.DeletedEvent(target), cleanup.PurgedEvent(target))
	}

	for _, event := range events {
		event := event
		s.hubservice.On(event, func(labels map[string]string) {
			s.monitoring.RecordEvent(event, labels)
		})
	}
}

// startRetention runs the sweeper when a maximum age is configured
func (s *Server) startRetention() {
	if s.config.Retention.MaxAge <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopSweep = cancel
	go s.hubservice.Cleanup.Run(ctx, s.config.Retention.Interval, s.config.Retention.MaxAge)
}

// initializeHubService creates and configures the hub service
func initializeHubService(cfg *config.Config) (*hubservice.HubService, error) {
	store, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	attachments, err := initAttachments(cfg.Attachments)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var calibrator hubservice.Calibrator
	if cfg.ML.CalibrationURL != "" {
		calibrator = mlproxy.NewCalibrationClient(cfg.ML.CalibrationURL, cfg.ML.Timeout)
	} else {
		nuts.L.Warnf("[Server] No calibration endpoint configured, raw readings will not be calibrated")
	}
	recommender := mlproxy.NewRecommendationClient(cfg.ML.RecommendationURL, cfg.ML.Timeout)

	svc := hubservice.New(store, attachments, calibrator, recommender, hubservice.Options{
		CalibrationTimeout: cfg.ML.Timeout,
		MaxFileSize:        cfg.Attachments.MaxFileSize,
		AllowedMimeTypes:   cfg.Attachments.AllowedMimeTypes,
	})
	if err := svc.Validate(); err != nil {
		_ = store.Close()
		return nil, err
	}
	return svc, nil
}

func initStore(cfg *config.Config) (repository.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var store repository.Store
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres, config.StoreDriverSQLite:
		var (
			db  database.DB
			err error
		)
		if cfg.Store.Driver == config.StoreDriverPostgres {
			db, err = database.NewPostgresDB(cfg.Store.Postgres)
		} else {
			db, err = database.NewSQLiteDB(cfg.Store.SQLite)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to connect to store: %w", err)
		}
		sqlStore, err := sqlstore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare store: %w", err)
		}
		store = sqlStore
	case config.StoreDriverMongoDB:
		db, err := database.NewMongoDB(cfg.Store.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to store: %w", err)
		}
		mongoStore, err := mongostore.New(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to prepare store: %w", err)
		}
		store = mongoStore
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	nuts.L.Infof("[Server] Using %s store", cfg.Store.Driver)

	if !cfg.Redis.Enabled {
		return store, nil
	}
	backend, err := cache.NewRedisBackend(cfg.Redis)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to connect to cache: %w", err)
	}
	return cache.WrapStore(store, backend, cfg.Redis.TTL), nil
}

func initAttachments(cfg config.AttachmentsConfig) (repository.AttachmentStore, error) {
	switch cfg.Driver {
	case config.AttachmentDriverFilesystem:
		repo, err := files.NewFileRepository(files.FileConfig{BasePath: cfg.BasePath})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
		}
		return repo, nil
	case config.AttachmentDriverMinio:
		repo, err := files.NewMinioRepository(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize attachment storage: %w", err)
		}
		return repo, nil
	default:
		return nil, nil
	}
}
