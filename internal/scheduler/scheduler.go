package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"propertyhub/internal/config"
	"propertyhub/internal/models"
)

// jobTimeout bounds one scheduled run
const jobTimeout = 10 * time.Minute

// TokenRenewer refreshes the social feed credentials
type TokenRenewer interface {
	Renew(ctx context.Context) error
}

// ApprovedSource lists every approved listing
type ApprovedSource interface {
	FindAllApproved(ctx context.Context) ([]models.Property, error)
}

// IndexWriter replaces the search index content
type IndexWriter interface {
	ReplaceAll(ctx context.Context, properties []models.Property) error
}

// Scheduler handles scheduled maintenance tasks
type Scheduler struct {
	cron      *cron.Cron
	config    config.SchedulerConfig
	renewer   TokenRenewer
	source    ApprovedSource
	index     IndexWriter
	logger    *zap.Logger
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler. renewer or index may be nil when
// the social feed or search is not configured; their jobs are skipped.
func NewScheduler(cfg config.SchedulerConfig, loc *time.Location, renewer TokenRenewer, source ApprovedSource, index IndexWriter, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		config:  cfg,
		renewer: renewer,
		source:  source,
		index:   index,
		logger:  logger.Named("scheduler"),
	}
}

// Start registers the enabled jobs and starts the cron loop
func (s *Scheduler) Start() error {
	jobs := 0

	if s.config.TokenRenewalEnabled && s.renewer != nil {
		if err := s.addDaily("social_token_renewal", s.config.TokenRenewalTime, s.RenewTokens); err != nil {
			return err
		}
		jobs++
	}
	if s.config.ReindexEnabled && s.index != nil {
		if err := s.addDaily("search_reindex", s.config.ReindexTime, s.RunReindex); err != nil {
			return err
		}
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("no scheduled jobs enabled")
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	s.isRunning = true
	return nil
}

func (s *Scheduler) addDaily(name, at string, run func(ctx context.Context) error) error {
	cronSpec := s.parseDailyRunTime(at)
	_, err := s.cron.AddFunc(cronSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		s.logger.Info("job started", zap.String("job", name))
		if err := run(ctx); err != nil {
			s.logger.Error("job failed", zap.String("job", name), zap.Error(err))
			return
		}
		s.logger.Info("job completed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("at", at), zap.String("cron", cronSpec))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		<-s.cron.Stop().Done()
		s.isRunning = false
		s.logger.Info("stopped")
	}
}

// RenewTokens exchanges the social feed tokens for fresh ones
func (s *Scheduler) RenewTokens(ctx context.Context) error {
	if s.renewer == nil {
		return fmt.Errorf("social feed is not configured")
	}
	return s.renewer.Renew(ctx)
}

// RunReindex rebuilds the search index from the approved listings
func (s *Scheduler) RunReindex(ctx context.Context) error {
	if s.index == nil {
		return fmt.Errorf("search is not configured")
	}
	properties, err := s.source.FindAllApproved(ctx)
	if err != nil {
		return fmt.Errorf("failed to load approved properties: %w", err)
	}
	if err := s.index.ReplaceAll(ctx, properties); err != nil {
		return fmt.Errorf("failed to reindex %d properties: %w", len(properties), err)
	}
	s.logger.Info("search index rebuilt", zap.Int("properties", len(properties)))
	return nil
}

// parseDailyRunTime converts HH:MM format to cron specification
// Example: "02:00" -> "0 2 * * *" (run at 2:00 AM every day)
func (s *Scheduler) parseDailyRunTime(timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}

	// Default to 2:00 AM if parsing fails
	s.logger.Warn("failed to parse daily run time, using 02:00", zap.String("value", timeStr))
	return "0 2 * * *"
}
