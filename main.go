package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kevinaaaquil/library/backend/auth"
	"github.com/kevinaaaquil/library/backend/config"
	"github.com/kevinaaaquil/library/backend/handlers"
	"github.com/kevinaaaquil/library/backend/notifications"
	"github.com/kevinaaaquil/library/backend/observability"
	"github.com/kevinaaaquil/library/backend/service"
	"github.com/kevinaaaquil/library/backend/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}
	cfg.LogSummary(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	ctx := context.Background()

	var st service.Store
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on restart")
		st = store.NewMemory()
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		db, err := store.NewMongoDB(connectCtx, cfg.MongoURI, cfg.DBName, prom.CommandMonitor())
		if err == nil {
			err = db.EnsureIndexes(connectCtx)
		}
		cancel()
		if err != nil {
			log.Error("mongodb", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := db.Disconnect(context.Background()); err != nil {
				log.Error("mongodb disconnect", "error", err)
			}
		}()
		st = db
	}

	tokens := auth.NewManager(cfg)
	authService := service.NewAuthService(cfg, st, tokens, log)
	library := service.NewLibraryService(cfg, st, log)

	if cfg.S3Enabled() {
		s3Service, err := service.NewS3Service(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3AccessKeyID, cfg.S3SecretKey)
		if err != nil {
			log.Error("s3", "error", err)
			os.Exit(1)
		}
		library.WithCovers(s3Service)
	} else {
		log.Warn("AWS_S3_BUCKET not set; cover uploads are disabled")
	}
	if cfg.SMTPEnabled() {
		library.WithNotifier(notifications.NewMailNotifier(cfg))
	}
	if cfg.MetadataLookup {
		library.WithMetadata(service.NewGoogleBooks())
	}

	server := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Config:   cfg,
			Log:      log,
			Tokens:   tokens,
			Auth:     authService,
			Library:  library,
			Prom:     prom,
			Gatherer: reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	library.Wait()
}
