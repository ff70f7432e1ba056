//	@title			Yacut API
//	@version		1.0
//	@description	URL shortener with file storage on Yandex Disk.
//
//	@host		localhost:8080
//	@BasePath	/

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/yacut/service/internal/config"
	"github.com/yacut/service/internal/db"
	"github.com/yacut/service/internal/disk"
	"github.com/yacut/service/internal/ingest"
	appMiddleware "github.com/yacut/service/internal/middleware"
	"github.com/yacut/service/internal/shortener"

	_ "github.com/yacut/service/docs/swagger"
)

// reservedShorts are codes that collide with route names and can never be
// allocated as short links.
var reservedShorts = []string{"files"}

func main() {
	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	diskClient := disk.New(cfg.DiskToken, cfg.DiskAPIBase)

	// Best effort: the upload folder is also created lazily on first upload.
	if cfg.DiskToken != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := diskClient.EnsureFolder(ctx, cfg.DiskBaseDir); err != nil {
			log.Printf("warning: could not ensure disk folder %s: %v", cfg.DiskBaseDir, err)
		}
		cancel()
	}

	// Wire dependencies: repository → service → handler
	repo := shortener.NewRepository(pool)
	shortSvc := shortener.NewService(repo, reservedShorts)
	shortHandler := shortener.NewHandler(shortSvc, diskClient, cfg.PublicBaseURL, "/files", cfg.DiskDirectRedirect)

	ingestSvc := ingest.NewService(diskClient, shortSvc, cfg.DiskBaseDir, cfg.PublicBaseURL)
	ingestHandler := ingest.NewHandler(ingestSvc)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Swagger UI — available at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Short link API
	r.Route("/api", func(r chi.Router) {
		r.Post("/id", shortHandler.Create)
		r.Get("/id/{short}", shortHandler.GetOriginal)
	})

	// File ingestion
	r.Post("/files", ingestHandler.Upload)

	// Public short links; must come last so static routes win.
	r.Get("/{short}", shortHandler.Follow)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// No WriteTimeout: proxied downloads may legitimately stream for minutes.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		log.Printf("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}
