// Package main is the entry point for the drainage field report server.
// It provides a REST API for editing field reports as draft trees,
// saving them to PostgreSQL with their photos in object storage, and
// exporting saved reports as PDF or XLSX.
//
// Architecture:
//   - Drafts (the report tree under edit and pending photo bytes) live in Redis
//   - Saving uploads pending photos to MinIO, then reconciles the tree
//     with the relational store level by level
//   - Every save and delete is recorded in the report activity log
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/saluran/fieldreport-server/internal/config"
	"github.com/saluran/fieldreport-server/internal/database"
	"github.com/saluran/fieldreport-server/internal/drafts"
	"github.com/saluran/fieldreport-server/internal/handlers"
	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/middleware"
	"github.com/saluran/fieldreport-server/internal/render"
	"github.com/saluran/fieldreport-server/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	logger, _ := zap.NewProduction()
	if cfg.Environment == "development" {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sugar.Infow("Starting field report server",
		"port", cfg.Port,
		"env", cfg.Environment,
		"atomic_save", cfg.AtomicSave,
	)

	ctx := context.Background()

	// Initialize database connection pool
	db, err := database.NewPool(ctx, cfg.DatabaseURL, database.PoolOptions{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		sugar.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if cfg.RunMigrations {
		if err := database.ApplyMigrations(ctx, db, sugar); err != nil {
			sugar.Fatalf("Failed to apply migrations: %v", err)
		}
	}

	// Draft store (Redis)
	draftStore, err := drafts.NewStore(cfg.RedisURL, cfg.DraftTTL)
	if err != nil {
		sugar.Fatalf("Failed to connect to redis: %v", err)
	}
	defer draftStore.Close()

	// Object storage
	objects, err := media.NewMinioStore(ctx, media.StorageConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MediaPublicURL,
	})
	if err != nil {
		sugar.Fatalf("Failed to connect to object storage: %v", err)
	}

	// Initialize services
	activitySvc := services.NewActivityLogService(db, sugar)
	reportSvc := services.NewReportService(
		services.NewPostgresStore(db),
		media.NewCoordinator(objects, sugar),
		services.ReportServiceOptions{Atomic: cfg.AtomicSave, Activity: activitySvc},
		sugar,
	)

	pdf := render.NewPDFExporter(cfg.PDFTimeout)
	if !pdf.Available() {
		sugar.Warn("Chromium not found, PDF export disabled")
	}

	// Initialize handlers
	draftHandler := handlers.NewDraftHandler(draftStore, reportSvc, cfg.MaxUploadBytes, sugar)
	reportHandler := handlers.NewReportHandler(reportSvc, pdf, sugar)
	activityHandler := handlers.NewActivityHandler(activitySvc, reportSvc, sugar)
	healthHandler := handlers.NewHealthHandler(db, draftStore, objects, sugar)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.PDFTimeout + 30*time.Second))
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Shared limit across instances; a local window is enough in development
	var limiter middleware.Limiter = middleware.NewRedisLimiter(draftStore.Client(), cfg.RateLimitRPM)
	if cfg.Environment == "development" {
		limiter = middleware.NewMemoryLimiter(cfg.RateLimitRPM)
	}

	// API Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", healthHandler.Check)
		r.Get("/health/ready", healthHandler.Ready)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(limiter, sugar))

			// Draft editing
			r.Route("/drafts", func(r chi.Router) {
				r.Post("/", draftHandler.Create)                  // New report or open saved one
				r.Get("/{id}", draftHandler.Get)                  // Form projection
				r.Delete("/{id}", draftHandler.Delete)            // Discard draft
				r.Patch("/{id}/fields", draftHandler.SetField)    // Set one field
				r.Post("/{id}/children", draftHandler.AddChild)   // Append to a collection
				r.Delete("/{id}/children", draftHandler.RemoveChild)
				r.Post("/{id}/photos", draftHandler.AttachPhotos) // Multipart upload
				r.Delete("/{id}/photos", draftHandler.RemovePhoto)
				r.Post("/{id}/save", draftHandler.Save) // Upload + reconcile
			})

			// Saved reports
			r.Route("/reports", func(r chi.Router) {
				r.Get("/", reportHandler.List)
				r.Get("/{id}", reportHandler.Get)
				r.Delete("/{id}", reportHandler.Delete)
				r.Get("/{id}/pdf", reportHandler.ExportPDF)
				r.Get("/{id}/xlsx", reportHandler.ExportXLSX)
				r.Get("/{id}/html", reportHandler.ExportHTML)
				r.Get("/{id}/activity", activityHandler.ByReport)
			})

			r.Get("/activity/recent", activityHandler.Recent)
		})
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.PDFTimeout + 45*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sugar.Infof("Server listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	sugar.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Fatalf("Forced shutdown: %v", err)
	}

	sugar.Info("Server stopped")
}
