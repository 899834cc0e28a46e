package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/25x8/rewards/internal/rewards/config"
	"github.com/25x8/rewards/internal/rewards/handlers"
	"github.com/25x8/rewards/internal/rewards/middleware"
	"github.com/25x8/rewards/internal/rewards/repository"
	"github.com/25x8/rewards/internal/rewards/service"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const adminName = "Admin"

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	repo       repository.Repository
	svc        *service.Service
	reporter   *service.WithdrawalReporter
	handler    *handlers.Handler
	httpServer *http.Server
}

// NewServer opens the configured account store and builds the service
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := service.NewService(repo, cfg)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		repo:     repo,
		svc:      svc,
		reporter: service.NewWithdrawalReporter(svc, cfg.ReportSchedule),
		handler:  handlers.NewHandler(svc, cfg.JWTSecret, cfg.TokenTTL, cfg.AdminTokenTTL),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		repo := repository.NewPostgresRepository(cfg.TxMaxRetries)
		if err := repo.InitDB(cfg.DatabaseURI); err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return repo, nil

	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		repo := repository.NewRedisRepository(rdb, cfg.TxMaxRetries)
		if err := repo.Ping(ctx); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return repo, nil

	default:
		log.Warn("Using in-memory account store, data is lost on restart")
		return repository.NewMemoryRepository(cfg.TxMaxRetries), nil
	}
}

// Router builds the HTTP handler with all middleware
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	s.handler.Mount(r)
	return r
}

// Run starts the HTTP server
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.AdminEmail != "" {
		if err := s.svc.EnsureAdmin(ctx, adminName, s.cfg.AdminEmail, s.cfg.AdminPassword); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	if err := s.reporter.Start(); err != nil {
		return fmt.Errorf("start withdrawal reporter: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.RunAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithFields(log.Fields{
		"address": s.cfg.RunAddress,
		"store":   s.cfg.StoreBackend,
	}).Info("Starting server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	if s.reporter != nil {
		s.reporter.Stop()
	}

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return err
		}
	}

	return nil
}
