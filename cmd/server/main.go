package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chepyr/go-task-manager/internal/config"
	"github.com/chepyr/go-task-manager/internal/db"
	"github.com/chepyr/go-task-manager/internal/handlers"
	"github.com/chepyr/go-task-manager/internal/logger"
	"github.com/chepyr/go-task-manager/internal/session"
)

func main() {
	cfg := loadConfig()

	zapLogger, err := logger.New(logger.Config{Level: cfg.Logger.Level, Encoding: cfg.Logger.Encoding})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	dbConn := initDB(cfg, zapLogger)
	defer dbConn.Close()

	handler := initHandlers(cfg, dbConn, zapLogger)
	server := initServer(cfg, handler)
	startServer(cfg, server, zapLogger)
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return cfg
}

func initDB(cfg *config.Config, zapLogger *zap.Logger) *sql.DB {
	dbConn, err := db.Connect(cfg.Database.Driver, cfg.Database.DSN,
		cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.RequestTimeout)
	defer cancel()
	if err := db.Migrate(ctx, dbConn, cfg.Database.Driver); err != nil {
		zapLogger.Fatal("failed to apply schema", zap.Error(err))
	}
	return dbConn
}

func initHandlers(cfg *config.Config, dbConn *sql.DB, zapLogger *zap.Logger) *handlers.Handler {
	pages, err := handlers.LoadPages()
	if err != nil {
		zapLogger.Fatal("failed to load templates", zap.Error(err))
	}
	proxies, err := cfg.RateLimit.TrustedProxyPrefixes()
	if err != nil {
		zapLogger.Fatal("invalid trusted proxies", zap.Error(err))
	}

	return &handlers.Handler{
		UserRepo:       db.NewUserRepository(dbConn),
		TaskRepo:       db.NewTaskRepository(dbConn),
		Sessions:       session.NewManager(db.NewSessionRepository(dbConn), cfg.Session.Secret, cfg.Session.TTL, cfg.Session.SecureCookie),
		RateLimiter:    handlers.NewRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		TrustedProxies: proxies,
		Pages:          pages,
		DB:             dbConn,
		Logger:         zapLogger,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	}
}

func initServer(cfg *config.Config, handler *handlers.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
}

func startServer(cfg *config.Config, server *http.Server, zapLogger *zap.Logger) {
	zapLogger.Info("starting task manager", zap.String("addr", server.Addr), zap.String("db_driver", cfg.Database.Driver))

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zapLogger.Error("server shutdown failed", zap.Error(err))
		return
	}
	zapLogger.Info("server stopped")
}
