package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/expense-tracker/apiserver/config"
	"github.com/expense-tracker/apiserver/internal/auth"
	"github.com/expense-tracker/apiserver/internal/db"
	"github.com/expense-tracker/apiserver/internal/handlers"
	"github.com/expense-tracker/apiserver/internal/mq"
	"github.com/expense-tracker/apiserver/internal/services"
	"github.com/expense-tracker/apiserver/internal/storage"
	"github.com/expense-tracker/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.MQ
}

// New opens the database, upload archive and event broker, then builds the
// router with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	archive, err := storage.FromConfig(ctx, cfg.Upload)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("upload storage: %w", err)
	}

	queue, err := mq.FromConfig(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("message queue: %w", err)
	}

	expenseOpts := []services.ExpenseOption{services.WithUploadArchive(archive)}
	if queue != nil {
		expenseOpts = append(expenseOpts, services.WithEventPublisher(queue, cfg.MQ.ExpenseChannel))
		log.Info().Str("backend", cfg.MQ.Backend).Str("channel", cfg.MQ.ExpenseChannel).Msg("publishing expense events")
	}

	userRepo := store.NewUserRepository(dbConn)
	expenseRepo := store.NewExpenseRepository(dbConn)

	tokens := auth.NewTokenService(cfg.JWTSecret, !cfg.IsDevelopment())
	userService := services.NewUserService(userRepo, auth.NewBcryptHasher(), tokens)
	expenseService := services.NewExpenseService(expenseRepo, expenseOpts...)

	authMiddleware := handlers.RequireAuth(tokens, userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		handlers.RequestLogger(log.Logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/", handlers.Home)
	router.Get("/healthz", handlers.Healthz(dbConn))
	router.Get("/api-docs", handlers.APIDocs)
	router.Route("/api/v1", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, authMiddleware)
	})
	router.Route("/api/v2/expense", func(r chi.Router) {
		handlers.ExpenseRouter(r, expenseService, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 65 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx is
// done, then closes the broker and the database.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if qerr := s.queue.Close(); qerr != nil {
		log.Warn().Err(qerr).Msg("close message queue")
	}
	if s.db != nil {
		if derr := s.db.Close(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}
