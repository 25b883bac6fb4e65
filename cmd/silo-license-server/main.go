package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	internalhttp "github.com/EternisAI/silo-license/internal/api/http"
	"github.com/EternisAI/silo-license/internal/auth"
	"github.com/EternisAI/silo-license/internal/db"
	"github.com/EternisAI/silo-license/internal/license"
	"github.com/EternisAI/silo-license/internal/metrics"
	"github.com/EternisAI/silo-license/internal/store/memory"
	"github.com/EternisAI/silo-license/internal/store/postgres"
	"github.com/EternisAI/silo-license/internal/store/sqlite"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Silo License Server", "version", AppVersion)

	issuer, err := auth.NewIssuer(config.Jwt)
	if err != nil {
		slog.Error("Failed to initialize token issuer", "error", err)
		os.Exit(1)
	}

	store, closeStore, err := openStore(context.Background())
	if err != nil {
		slog.Error("Failed to open license store", "driver", config.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry := license.NewRegistry(store, issuer,
		license.WithStrictHardwareBinding(config.License.StrictHardwareBinding))

	if config.Http.AdminAPIKey == "" {
		slog.Warn("Admin API key not configured, license management endpoints are unauthenticated")
	}

	services := &internalhttp.Services{
		Registry: registry,
		Metrics:  metrics.NewRecorder(),
		Version:  AppVersion,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, config.Http, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr, "store", config.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	slog.Info("Shutdown complete")
}

// openStore returns the configured backend and a func releasing its resources.
func openStore(ctx context.Context) (license.Store, func(), error) {
	switch config.Store.Driver {
	case "", STORE_DRIVER_MEMORY:
		slog.Warn("Using in-memory license store, licenses are lost on restart")
		return memory.NewStore(), func() {}, nil

	case STORE_DRIVER_SQLITE:
		s, err := sqlite.Open(config.Store.SqlitePath)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("SQLite license store opened", "path", config.Store.SqlitePath)
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Error("Failed to close SQLite store", "error", err)
			}
		}, nil

	case STORE_DRIVER_POSTGRES:
		if config.Db.Url == "" {
			return nil, nil, fmt.Errorf("db.url is required for the postgres store")
		}
		if err := db.RunMigrations(config.Db.Url, config.Db.Schema); err != nil {
			return nil, nil, err
		}
		pool, err := db.InitDB(ctx, config.Db.Url, config.Db.Schema)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewStore(pool), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", config.Store.Driver)
	}
}
