package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/infrasec/internal/api/handlers"
	"github.com/pratik-mahalle/infrasec/internal/api/router"
	"github.com/pratik-mahalle/infrasec/internal/catalog"
	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
	"github.com/pratik-mahalle/infrasec/internal/events"
	"github.com/pratik-mahalle/infrasec/internal/generator"
	"github.com/pratik-mahalle/infrasec/internal/iac/terraform"
	"github.com/pratik-mahalle/infrasec/internal/pkg/logger"
	"github.com/pratik-mahalle/infrasec/internal/pkg/validator"
	"github.com/pratik-mahalle/infrasec/internal/repository"
	"github.com/pratik-mahalle/infrasec/internal/services"
	"github.com/pratik-mahalle/infrasec/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	validator.Init()

	store, err := repository.NewStore(cfg.Database, log)
	if err != nil {
		log.Fatalf("Failed to open rule store: %v", err)
	}
	defer store.Close()

	pub, err := events.New(cfg.Events, log)
	if err != nil {
		log.Fatalf("Failed to connect event publisher: %v", err)
	}
	defer pub.Close()

	ruleService := services.NewRuleService(store, pub, log)
	scanService := services.NewScanService(ruleService, terraform.NewParser(log), pub, log, cfg.Scan.Workers)

	if gen := generator.New(ruleService, cfg.Generator, log); gen.Enabled() {
		scanService.SetDrafter(gen)
		log.Info("Candidate rule generator enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat := catalog.New(ruleService, cfg.Catalog, log)
	if err := cat.Seed(ctx); err != nil {
		log.Fatalf("Failed to seed rule catalog: %v", err)
	}
	if cfg.Catalog.Watch && cfg.Catalog.RulesFile != "" {
		if err := cat.Watch(ctx); err != nil {
			log.Errorf("Failed to watch rules file: %v", err)
		}
	}

	val := validator.New()
	h := &router.Handlers{
		Health: handlers.NewHealthHandler(store, log),
		Rule:   handlers.NewRuleHandler(ruleService, log, val),
		Scan:   handlers.NewScanHandler(scanService, cat, log, val),
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	refresher := worker.NewStatsRefresher(ruleService, 30*time.Second, log)
	go refresher.Start(ctx)

	scheduler := startBackups(cfg, store, log)
	if scheduler != nil {
		defer scheduler.Stop()
	}

	go func() {
		log.Infof("Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Shutdown error: %v", err)
	}
}

// startBackups schedules periodic sqlite snapshots via VACUUM INTO. Returns
// nil when backups are disabled or the driver is not sqlite.
func startBackups(cfg *config.Config, store rule.Store, log *logger.Logger) *cron.Cron {
	if cfg.Backup.Schedule == "" || cfg.Database.Driver != "sqlite" {
		return nil
	}

	if err := os.MkdirAll(cfg.Backup.Directory, 0o755); err != nil {
		log.Errorf("Failed to create backup directory: %v", err)
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(cfg.Backup.Schedule, func() {
		dest := filepath.Join(cfg.Backup.Directory, fmt.Sprintf("infrasec-%s.db", time.Now().UTC().Format("20060102-150405")))
		if err := repository.Backup(store, dest); err != nil {
			log.Errorf("Backup failed: %v", err)
			return
		}
		log.Infof("Backup written to %s", dest)
	})
	if err != nil {
		log.Errorf("Invalid backup schedule %q: %v", cfg.Backup.Schedule, err)
		return nil
	}

	c.Start()
	return c
}
