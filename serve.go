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

	"github.com/AnTengye/keydates/config"
	"github.com/AnTengye/keydates/handler"
	"github.com/AnTengye/keydates/middleware"
	"github.com/AnTengye/keydates/service"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	router, err := newRouter(cfg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 2*time.Duration(cfg.LLM.TimeoutSeconds)*time.Second + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exited gracefully")
	return nil
}

func newRouter(cfg *config.Config) (*gin.Engine, error) {
	var archive handler.ResultArchiver
	if cfg.Archive.Enabled {
		archiveSvc, err := service.NewArchiveService(&cfg.Archive)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize archive: %w", err)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to ensure archive bucket: %w", err)
		}
		archive = archiveSvc
		slog.Info("result archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	if cfg.LLM.APIKey == "" {
		slog.Warn("OPENAI_API_KEY is not set, extraction requests will fail")
	}

	extractionHandler := handler.NewExtractionHandler(
		service.NewDocumentService(),
		newPipeline(cfg),
		service.NewExportService(),
		archive,
		cfg.Server.MaxUploadBytes(),
	)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	// Keep whole uploads in memory.
	router.MaxMultipartMemory = cfg.Server.MaxUploadBytes() + 1<<20

	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())
	router.Use(middleware.NoCache())
	if cfg.Server.RateLimit > 0 {
		router.Use(middleware.RateLimit(cfg.Server.RateLimit, time.Duration(cfg.Server.RateWindowSeconds)*time.Second))
	}

	extractionHandler.Register(router)
	return router, nil
}
