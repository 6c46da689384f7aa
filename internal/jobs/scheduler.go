package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rankrent/internal/config"
	"rankrent/internal/conversions"
	"rankrent/internal/database"
	"rankrent/internal/goals"
	"rankrent/internal/pkg/geoip"
	"rankrent/internal/tracking"
)

const (
	cleanupInterval = 24 * time.Hour
	geoInterval     = time.Hour
)

// Scheduler runs the background jobs. Implements cartridge.BackgroundWorker.
type Scheduler struct {
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	conversionJob *ConversionJob
	cleanupJob    *CleanupJob
	geoJob        *GeoLiteUpdaterJob

	tickers []*time.Ticker
	wg      sync.WaitGroup
}

// NewScheduler builds the jobs on dbManager's connection. geo may be nil, in
// which case the GeoLite updater is not scheduled.
func NewScheduler(dbManager *database.DBManager, logger *slog.Logger, geo *geoip.Resolver) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()
	db := dbManager.GetConnection()

	events := tracking.NewStore(db, logger)
	goalStore := goals.NewStore(db, logger)
	processor := conversions.NewProcessor(events, goalStore, conversions.NewStore(db, logger),
		goals.NewMatcher(goals.WithLogger(logger)), logger, conversions.DefaultBatchSize)

	s := &Scheduler{
		logger:        logger,
		ctx:           ctx,
		cancel:        cancel,
		enabled:       true,
		cfg:           cfg,
		conversionJob: NewConversionJob(db, processor, logger),
		cleanupJob:    NewCleanupJob(events, logger, cfg.EventRetentionDays),
	}
	if geo != nil {
		s.geoJob = NewGeoLiteUpdaterJob(geo, cfg.MaxMindLicenseKey, logger)
	}
	return s, nil
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(jobName string, jobFunc func(context.Context) error) {
	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", jobName))
		s.processingMutex.Unlock()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", jobName),
				slog.Any("panic", r))
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := jobFunc(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", jobName), slog.Any("error", err))
	}
}

// Start begins all background jobs
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}
	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...")
	s.isRunning = true

	s.startJob("conversion_processor", time.Duration(s.cfg.JobIntervalSeconds)*time.Second, s.conversionJob.Run)
	s.startJob("cleanup", cleanupInterval, s.cleanupJob.Run)
	if s.geoJob != nil {
		s.startJob("geolite_updater", geoInterval, s.geoJob.Run)
	}

	s.logger.Info("Background jobs started", slog.Int("jobs", len(s.tickers)))
	return nil
}

// startJob runs fn once right away and then on every tick until Stop.
func (s *Scheduler) startJob(name string, interval time.Duration, fn func(context.Context) error) {
	s.logger.Info("Starting job", slog.String("job", name), slog.Duration("interval", interval))
	ticker := time.NewTicker(interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(name, fn)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(name, fn)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", name))
				return
			}
		}
	}()
}

// Stop halts all background jobs and waits for running ones to return.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, t := range s.tickers {
		t.Stop()
	}
	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// ProcessConversions runs the conversion job once, outside the ticker.
func (s *Scheduler) ProcessConversions(ctx context.Context) error {
	return s.conversionJob.Run(ctx)
}
