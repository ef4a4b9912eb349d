package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/pkg/logger"

	"github.com/robfig/cron/v3"
)

const sweepRunTimeout = 10 * time.Minute

// ISweepService triggers the periodic missed-instance sweep and due-soon
// reminders.
type ISweepService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	RunOnce(ctx context.Context) (*dto.SweepReportResponse, error)
}

type sweepService struct {
	scheduling ISchedulingService
	spec       string
	loc        *time.Location
	logger     logger.ILogger

	mu sync.Mutex
	c  *cron.Cron
}

func NewSweepService(scheduling ISchedulingService, spec string, loc *time.Location, log logger.ILogger) ISweepService {
	if loc == nil {
		loc = time.UTC
	}
	return &sweepService{
		scheduling: scheduling,
		spec:       spec,
		loc:        loc,
		logger:     log,
	}
}

// Start registers the cron entry in the scheduling time zone. Calling it twice
// is a no-op.
func (s *sweepService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}

	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepRunTimeout)
		defer cancel()
		if _, err := s.RunOnce(runCtx); err != nil {
			s.logger.Error("SWEEP", "Scheduled sweep failed", map[string]interface{}{"error": err.Error()})
		}
	}); err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", s.spec, err)
	}

	c.Start()
	s.c = c
	s.logger.Info("SWEEP", "Sweep scheduled", map[string]interface{}{"spec": s.spec, "tz": s.loc.String()})
	return nil
}

func (s *sweepService) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("SWEEP", "Sweep stopped", nil)
}

func (s *sweepService) RunOnce(ctx context.Context) (*dto.SweepReportResponse, error) {
	report, err := s.scheduling.SweepMissed(ctx)
	if err != nil {
		return nil, err
	}

	reminded, err := s.scheduling.RemindUpcoming(ctx)
	if err != nil {
		// Reminders are advisory; the sweep result stands.
		s.logger.Warn("SWEEP", "Failed to send due-soon reminders", map[string]interface{}{"error": err.Error()})
	}
	report.Reminded = reminded
	return report, nil
}
