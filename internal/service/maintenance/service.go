package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lordseriouspig/nova-shell/internal/port"
)

// Config contains maintenance service configuration
type Config struct {
	// CleanupInterval is how often to look for abandoned partial files
	CleanupInterval time.Duration

	// PartFileMaxAge is the age after which a partial file counts as abandoned
	PartFileMaxAge time.Duration
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CleanupInterval: time.Hour,
		PartFileMaxAge:  24 * time.Hour,
	}
}

// Service repairs state left behind by an earlier process and keeps the
// download directory tidy
type Service struct {
	config  *Config
	records port.DownloadRecordRepository
	dir     port.DownloadDirectory
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new maintenance Service
func New(cfg *Config, records port.DownloadRecordRepository, dir port.DownloadDirectory, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.PartFileMaxAge == 0 {
		cfg.PartFileMaxAge = 24 * time.Hour
	}

	return &Service{
		config:  cfg,
		records: records,
		dir:     dir,
		logger:  logger,
		now:     time.Now,
	}
}

// ReconcileInterrupted marks records that were still active when the previous
// process exited as Interrupted. It must run before the download manager
// registers any transfer.
func (s *Service) ReconcileInterrupted() (int, error) {
	active, err := s.records.ListActiveRecords()
	if err != nil {
		s.logger.Warn("failed to list stale downloads", zap.Error(err))
	}
	for _, rec := range active {
		s.logger.Info("interrupting stale download",
			zap.String("id", rec.ID),
			zap.String("filename", rec.Filename),
			zap.String("state", string(rec.State)),
			zap.Int64("received_bytes", rec.ReceivedBytes))
	}

	n, err := s.records.MarkActiveInterrupted(s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile interrupted downloads: %w", err)
	}
	if n > 0 {
		s.logger.Info("marked stale downloads as interrupted", zap.Int("count", n))
	}
	return n, nil
}

// Start starts the maintenance service and blocks until ctx is done
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.running = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("cleanup_interval", s.config.CleanupInterval),
		zap.Duration("part_file_max_age", s.config.PartFileMaxAge))

	s.wg.Add(1)
	go s.maintenanceLoop(ctx)

	<-ctx.Done()
	s.wg.Wait()
	s.logger.Info("maintenance service stopped")
	return nil
}

// Stop stops the maintenance service
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
}

func (s *Service) maintenanceLoop(ctx context.Context) {
	defer s.wg.Done()

	cleanupTicker := time.NewTicker(s.config.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			s.cleanupPartFiles()
		}
	}
}

// cleanupPartFiles removes abandoned partial downloads
func (s *Service) cleanupPartFiles() {
	count, err := s.dir.CleanOldPartFiles(s.config.PartFileMaxAge)
	if err != nil {
		s.logger.Error("failed to cleanup old partial files", zap.Error(err))
	} else if count > 0 {
		s.logger.Info("cleaned up old partial files", zap.Int("count", count))
	}
}
