package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/basit/mediashare-backend/auth"
	"github.com/basit/mediashare-backend/auth/middleware"
	"github.com/basit/mediashare-backend/handlers"
	"github.com/basit/mediashare-backend/initializers"
	"github.com/basit/mediashare-backend/jobs"
	"github.com/basit/mediashare-backend/routes"
	"github.com/basit/mediashare-backend/services"
)

func main() {
	issueFor := flag.String("issue-token", "", "print an access token for the given user id and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-token")
	flag.Parse()

	cfg, err := initializers.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	if *issueFor != "" {
		id, err := uuid.Parse(*issueFor)
		if err != nil {
			fmt.Fprintln(os.Stderr, "invalid user id:", err)
			os.Exit(1)
		}
		tok, err := auth.IssueAccessToken(cfg.JWTSecret, id, *tokenTTL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "issuing token:", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	log, err := initializers.NewLogger(cfg.LogLevel, cfg.LogProduction)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *initializers.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, db, err := initializers.NewFileStore(cfg, log)
	if err != nil {
		return err
	}
	blobs, err := initializers.NewBlobStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := services.NewFileService(files, blobs, log,
		services.WithCache(services.NewRecordCache(cfg.CacheSize, cfg.CacheTTL)),
		services.WithBaseURL(cfg.BaseURL),
	)
	jobs.StartCleanupJob(ctx, svc, cfg.CleanupInterval, cfg.CleanupBatch, log.Named("cleanup"))

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx)

	if cfg.LogProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.GinZapLogger(log.Named("http")),
		middleware.Metrics(),
		cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
	)

	router.GET("/healthz", handlers.Health(db))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("", limiter.Middleware())
	routes.RegisterFileRoutes(api, handlers.NewFileHandler(svc, log.Named("files")), cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr), zap.String("base_url", cfg.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	svc.Wait()
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return nil
}
