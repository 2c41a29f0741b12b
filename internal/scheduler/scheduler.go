package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// FeaturedRefresher regenerates the featured species list.
type FeaturedRefresher interface {
	RefreshFeatured(ctx context.Context) error
}

// Scheduler keeps the featured list warm on a cron schedule. A run that is
// still in progress when the next tick fires causes that tick to be skipped.
type Scheduler struct {
	refresher  FeaturedRefresher
	logger     *zap.Logger
	spec       string
	runTimeout time.Duration
	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.Mutex
	running    bool
	inFlight   bool
	lastRun    time.Time
	lastErr    error
	wg         sync.WaitGroup
}

func NewScheduler(refresher FeaturedRefresher, spec string, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		refresher:  refresher,
		logger:     logger,
		spec:       spec,
		runTimeout: 2 * time.Minute,
		cron:       cron.New(),
	}
}

func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	id, err := s.cron.AddFunc(s.spec, s.runRefresh)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid featured refresh schedule %q: %w", s.spec, err)
	}
	s.entryID = id
	s.running = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("Scheduler started",
		zap.String("spec", s.spec),
		zap.Time("next_run", s.cron.Entry(id).Next))

	// Run immediately on start
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRefresh()
	}()

	return nil
}

func (s *Scheduler) runRefresh() {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		s.logger.Debug("Skipping featured refresh, previous run still in progress")
		return
	}
	s.inFlight = true
	s.mu.Unlock()

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	err := s.refresher.RefreshFeatured(ctx)

	s.mu.Lock()
	s.inFlight = false
	s.lastRun = startTime
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Featured refresh failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(startTime)))
		return
	}
	s.logger.Info("Featured refresh completed",
		zap.Duration("duration", time.Since(startTime)))
}

// Stop halts the schedule and waits for any running refresh.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// ForceRun triggers a refresh outside the schedule.
func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering featured refresh")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runRefresh()
	}()
}

func (s *Scheduler) GetStatus() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := map[string]interface{}{
		"running":   s.running,
		"spec":      s.spec,
		"in_flight": s.inFlight,
		"last_run":  s.lastRun,
	}
	if s.running {
		status["next_run"] = s.cron.Entry(s.entryID).Next
	}
	if s.lastErr != nil {
		status["last_error"] = s.lastErr.Error()
	}
	return status
}
