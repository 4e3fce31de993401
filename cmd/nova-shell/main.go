package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/adapter/desktop"
	"github.com/lordseriouspig/nova-shell/internal/adapter/filesystem"
	"github.com/lordseriouspig/nova-shell/internal/adapter/sqlite"
	"github.com/lordseriouspig/nova-shell/internal/adapter/transfer"
	"github.com/lordseriouspig/nova-shell/internal/config"
	"github.com/lordseriouspig/nova-shell/internal/domain"
	"github.com/lordseriouspig/nova-shell/internal/domain/event"
	domainservice "github.com/lordseriouspig/nova-shell/internal/domain/service"
	"github.com/lordseriouspig/nova-shell/internal/logger"
	"github.com/lordseriouspig/nova-shell/internal/metrics"
	"github.com/lordseriouspig/nova-shell/internal/service/downloads"
	"github.com/lordseriouspig/nova-shell/internal/service/maintenance"
	"github.com/lordseriouspig/nova-shell/internal/service/resolver"
	"github.com/lordseriouspig/nova-shell/internal/service/server"
	"github.com/lordseriouspig/nova-shell/internal/util/id"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zapLogger := logger.GetZapLogger()
	zapLogger.Info("starting nova-shell",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	// Metrics and events
	m := metrics.New()
	events := event.NewInMemoryDispatcher(false, logger.Named("events"))
	events.Subscribe(event.NewLoggingHandler(logger.Named("events")))
	events.Subscribe(event.NewMetricsHandler(m))

	// Virtual resource resolver
	resources, err := filesystem.NewResourceStore(filesystem.SandboxRoots{
		Pages:  cfg.Sandbox.PagesDir,
		Assets: cfg.Sandbox.AssetsDir,
	}, cfg.Sandbox.Version, logger.Named("sandbox"))
	if err != nil {
		zapLogger.Fatal("failed to open sandbox roots", zap.Error(err))
	}
	res := resolver.New(accessPolicy(cfg.Sandbox), resources, events, logger.Named("resolver"))

	// Download directory
	downloadDir, err := filesystem.NewManager(cfg.Downloads.Dir)
	if err != nil {
		zapLogger.Fatal("failed to create download directory manager", zap.Error(err))
	}

	// Open database
	store, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		zapLogger.Fatal("failed to open database", zap.Error(err), zap.String("path", cfg.Database.Path))
	}
	defer store.Close()

	// Repair records left active by an earlier process before anything new is tracked
	maintenanceCfg := &maintenance.Config{
		CleanupInterval: cfg.Downloads.GetCleanupInterval(),
		PartFileMaxAge:  cfg.Downloads.GetPartFileMaxAge(),
	}
	maintenanceService := maintenance.New(maintenanceCfg, store, downloadDir, logger.Named("maintenance"))
	if _, err := maintenanceService.ReconcileInterrupted(); err != nil {
		zapLogger.Error("failed to reconcile interrupted downloads", zap.Error(err))
	}

	// Download session manager
	opener := desktop.NewOpener(cfg.Downloads.GetOpenFolderInterval(), logger.Named("opener"))
	downloadManager := downloads.New(downloadDir, store, opener, id.NewGenerator(), events, logger.Named("downloads"))

	transferClient := transfer.NewClient(transfer.Config{
		RetryMax:         cfg.Transfer.RetryMax,
		RetryWaitMin:     cfg.Transfer.GetRetryWaitMin(),
		RetryWaitMax:     cfg.Transfer.GetRetryWaitMax(),
		UserAgent:        cfg.Transfer.UserAgent,
		ProgressInterval: cfg.Transfer.GetProgressInterval(),
		BufferSize:       cfg.Transfer.GetBufferSize(),
	}, logger.Named("transfer"))

	startTransfer := func(ctx context.Context, rawURL string) (*domain.DownloadRecord, error) {
		t, err := transferClient.NewTransfer(rawURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInputRejected, err)
		}
		return downloadManager.Track(ctx, t)
	}

	// Create HTTP server
	serverCfg := &server.Config{
		BindAddr:     cfg.HTTP.BindAddr,
		APIToken:     cfg.HTTP.APIToken,
		ReadTimeout:  cfg.HTTP.GetReadTimeout(),
		WriteTimeout: cfg.HTTP.GetWriteTimeout(),
		IdleTimeout:  cfg.HTTP.GetIdleTimeout(),
	}
	httpServer := server.New(serverCfg, server.Deps{
		Store:     store,
		Resolver:  res,
		Downloads: downloadManager,
		Starter:   startTransfer,
		Disk:      downloadDir,
		Metrics:   m.Handler(),
		Observer:  m,
	}, logger.Named("http"))

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start download manager
	go func() {
		if err := downloadManager.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("download manager stopped with error", zap.Error(err))
		}
	}()

	// Start maintenance service
	go func() {
		if err := maintenanceService.Start(ctx); err != nil && err != context.Canceled {
			zapLogger.Error("maintenance service stopped with error", zap.Error(err))
		}
	}()

	// Start HTTP server
	go func() {
		if err := httpServer.Start(); err != nil {
			zapLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	zapLogger.Info("application started successfully",
		zap.String("http_addr", cfg.HTTP.BindAddr),
		zap.String("pages_dir", resources.PagesRoot()),
		zap.String("assets_dir", resources.AssetsRoot()),
		zap.String("download_dir", downloadDir.Root()),
	)
	<-sigChan

	zapLogger.Info("shutdown signal received, stopping services...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting requests first so no handler races the manager shutdown
	if err := httpServer.Stop(shutdownCtx); err != nil {
		zapLogger.Error("failed to stop HTTP server gracefully", zap.Error(err))
	}

	cancel()
	downloadManager.Stop()
	maintenanceService.Stop()

	zapLogger.Info("application stopped successfully")
}

// accessPolicy builds the policy from configured lists, falling back to the
// bundled defaults for any list left empty
func accessPolicy(cfg config.SandboxConfig) *domainservice.AccessPolicy {
	pages := cfg.Pages
	if len(pages) == 0 {
		pages = domainservice.DefaultPages
	}
	theme := cfg.Theme
	if len(theme) == 0 {
		theme = domainservice.DefaultThemeResources
	}
	return domainservice.NewAccessPolicy(pages, theme)
}
