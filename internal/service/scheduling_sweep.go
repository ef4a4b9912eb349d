package service

import (
	"context"
	"sync"

	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/pkg/events"
	"rent360-scheduling-be/pkg/schedule"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// SweepMissed marks every overdue scheduled instance as missed and rolls each
// active series forward. Each instance goes through the same locked path as a
// user action, so running the sweep twice changes nothing the second time.
func (s *schedulingService) SweepMissed(ctx context.Context) (*dto.SweepReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "sweep missed")
	defer span.End()

	today := s.today()
	// scheduled + grace < today  <=>  scheduled < today - grace
	cutoff := today.AddDate(0, 0, -s.opts.MissedGraceDays)

	lookupCtx, cancel := s.withTimeout(ctx)
	candidates, err := s.ledger.FindScheduledBefore(lookupCtx, s.uowFactory.NewUnitOfWork(lookupCtx), cutoff)
	cancel()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	report := &dto.SweepReportResponse{
		Today:   schedule.FormatDate(today),
		Checked: len(candidates),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.opts.SweepConcurrency)
	for _, inst := range candidates {
		g.Go(func() error {
			res, err := s.markMissed(ctx, inst.AgreementId, inst.Id, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failures = append(report.Failures, inst.Id.String()+": "+err.Error())
				s.logger.Warn("SWEEP", "Failed to mark instance missed", map[string]interface{}{
					"instance_id":  inst.Id.String(),
					"agreement_id": inst.AgreementId.String(),
					"error":        err.Error(),
				})
				return nil
			}
			if res.Marked {
				report.Missed++
			}
			if res.NextInstance != nil {
				report.Materialized++
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(
		attribute.Int("sweep.checked", report.Checked),
		attribute.Int("sweep.missed", report.Missed),
	)
	s.logger.Info("SWEEP", "Missed-instance sweep finished", map[string]interface{}{
		"today":        report.Today,
		"checked":      report.Checked,
		"missed":       report.Missed,
		"materialized": report.Materialized,
		"failures":     len(report.Failures),
	})
	return report, nil
}

// RemindUpcoming emits instance.due_soon for scheduled instances falling
// exactly ReminderLookaheadDays after today, so a daily run reminds each
// occurrence once.
func (s *schedulingService) RemindUpcoming(ctx context.Context) (int, error) {
	if s.opts.ReminderLookaheadDays <= 0 {
		return 0, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	target := s.today().AddDate(0, 0, s.opts.ReminderLookaheadDays)
	upcoming, err := s.ledger.FindScheduledBetween(ctx, s.uowFactory.NewUnitOfWork(ctx), target, target)
	if err != nil {
		return 0, err
	}

	for _, inst := range upcoming {
		payload := instancePayload(inst)
		payload["days_until"] = s.opts.ReminderLookaheadDays
		s.notifier.Emit(ctx, events.InstanceDueSoon, payload)
	}
	return len(upcoming), nil
}
