package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/pkg/lock"
	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/internal/repository/contract"
	"rent360-scheduling-be/internal/repository/unitofwork"
	"rent360-scheduling-be/pkg/apperror"
	"rent360-scheduling-be/pkg/events"
	"rent360-scheduling-be/pkg/schedule"
	"rent360-scheduling-be/pkg/scheduling/agreement"
	"rent360-scheduling-be/pkg/scheduling/ledger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ISchedulingService interface {
	StartRecurringService(ctx context.Context, req *dto.StartRecurringServiceRequest) (*dto.StartRecurringServiceResponse, error)
	GetAgreement(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementResponse, error)
	ListAgreements(ctx context.Context, req *dto.ListAgreementsRequest) ([]*dto.AgreementResponse, error)
	PauseService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error)
	ResumeService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error)
	CancelService(ctx context.Context, agreementID uuid.UUID, reason string) (*dto.AgreementTransitionResponse, error)
	CompleteService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error)
	UpdateAmount(ctx context.Context, agreementID uuid.UUID, amount int64) (*dto.AgreementResponse, error)

	StartInstance(ctx context.Context, instanceID uuid.UUID) (*dto.InstanceTransitionResponse, error)
	CompleteCurrentInstance(ctx context.Context, agreementID uuid.UUID, req *dto.CompleteInstanceRequest) (*dto.InstanceTransitionResponse, error)
	CompleteInstance(ctx context.Context, instanceID uuid.UUID, req *dto.CompleteInstanceRequest) (*dto.InstanceTransitionResponse, error)
	CancelCurrentInstance(ctx context.Context, agreementID uuid.UUID, reason string) (*dto.InstanceTransitionResponse, error)
	CancelInstance(ctx context.Context, instanceID uuid.UUID, reason string) (*dto.InstanceTransitionResponse, error)
	RecordOutcome(ctx context.Context, instanceID uuid.UUID, req *dto.RecordOutcomeRequest) (*dto.InstanceResponse, error)
	ListInstances(ctx context.Context, agreementID uuid.UUID) ([]*dto.InstanceResponse, error)

	MarkMissedIfOverdue(ctx context.Context, instanceID uuid.UUID) (*dto.MarkMissedResponse, error)
	SweepMissed(ctx context.Context) (*dto.SweepReportResponse, error)
	RemindUpcoming(ctx context.Context) (int, error)
}

type SchedulingOptions struct {
	// Location is where "today" is evaluated. Defaults to UTC.
	Location              *time.Location
	MissedGraceDays       int
	ReminderLookaheadDays int
	OperationTimeout      time.Duration
	SweepConcurrency      int
}

type schedulingService struct {
	uowFactory unitofwork.RepositoryFactory
	ledger     *ledger.Ledger
	store      *agreement.Store
	locker     lock.Locker
	cache      contract.AgreementCache
	notifier   INotificationService
	logger     logger.ILogger
	clock      schedule.Clock
	opts       SchedulingOptions
	tracer     trace.Tracer
}

func NewSchedulingService(
	uowFactory unitofwork.RepositoryFactory,
	locker lock.Locker,
	cache contract.AgreementCache,
	notifier INotificationService,
	log logger.ILogger,
	clock schedule.Clock,
	opts SchedulingOptions,
) ISchedulingService {
	if clock == nil {
		clock = schedule.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SweepConcurrency <= 0 {
		opts.SweepConcurrency = 4
	}
	l := ledger.New(clock)
	return &schedulingService{
		uowFactory: uowFactory,
		ledger:     l,
		store:      agreement.New(l, clock),
		locker:     locker,
		cache:      cache,
		notifier:   notifier,
		logger:     log,
		clock:      clock,
		opts:       opts,
		tracer:     otel.Tracer("rent360-scheduling/service"),
	}
}

// pendingEvent is emitted only after the transaction that produced it commits.
type pendingEvent struct {
	eventType string
	payload   map[string]interface{}
}

type txFunc func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error)

func (s *schedulingService) today() time.Time {
	return schedule.DateOf(s.clock(), s.opts.Location)
}

func (s *schedulingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || s.opts.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.OperationTimeout)
}

// inTx runs fn in one transaction. Nothing fn wrote survives an error.
func (s *schedulingService) inTx(ctx context.Context, op string, fn txFunc) ([]pendingEvent, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.FromPersistence(op, err)
	}
	defer uow.Rollback()

	evts, err := fn(ctx, uow)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, apperror.FromPersistence(op, err)
	}
	return evts, nil
}

// mutate is the critical section for one agreement: lock, transaction,
// cache invalidation and event emission, in that order.
func (s *schedulingService) mutate(ctx context.Context, op string, agreementID uuid.UUID, fn txFunc) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("agreement.id", agreementID.String())))
	defer span.End()

	err := s.lockedTx(ctx, op, agreementID, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return apperror.WithContext(err, "agreement_id", agreementID.String(), "operation", op)
	}
	return nil
}

func (s *schedulingService) lockedTx(ctx context.Context, op string, agreementID uuid.UUID, fn txFunc) error {
	release, err := s.locker.Acquire(ctx, agreementID.String())
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) || ctx.Err() != nil {
			return apperror.Transient(op, err)
		}
		return apperror.FromPersistence(op, err)
	}
	defer release()

	evts, err := s.inTx(ctx, op, fn)
	if err != nil {
		return err
	}

	// Still under the lock, so no reader can re-cache the previous row.
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), agreementID); err != nil {
		s.logger.Warn("SCHEDULING", "Failed to invalidate cached agreement", map[string]interface{}{
			"agreement_id": agreementID.String(),
			"error":        err.Error(),
		})
	}
	s.emit(ctx, evts)
	return nil
}

func (s *schedulingService) emit(ctx context.Context, evts []pendingEvent) {
	ctx = context.WithoutCancel(ctx)
	for _, e := range evts {
		s.notifier.Emit(ctx, e.eventType, e.payload)
	}
}

// agreementOf resolves the owning agreement of an instance so the caller can
// take the right lock. The instance is re-read inside the transaction.
func (s *schedulingService) agreementOf(ctx context.Context, instanceID uuid.UUID) (uuid.UUID, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	inst, err := s.ledger.Get(ctx, uow, instanceID)
	if err != nil {
		return uuid.Nil, apperror.WithContext(err, "instance_id", instanceID.String())
	}
	return inst.AgreementId, nil
}

func (s *schedulingService) StartRecurringService(ctx context.Context, req *dto.StartRecurringServiceRequest) (*dto.StartRecurringServiceResponse, error) {
	const op = "start recurring service"

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	freq, err := schedule.ParseFrequency(req.Frequency)
	if err != nil {
		return nil, apperror.Validation(op, "invalid recurring service request", map[string]string{
			"frequency": "must be one of daily, weekly, biweekly, monthly, quarterly",
		})
	}
	first, err := schedule.ParseDate(strings.TrimSpace(req.FirstOccurrenceDate))
	if err != nil {
		return nil, apperror.Validation(op, "invalid recurring service request", map[string]string{
			"first_occurrence_date": "must be a date formatted as 2006-01-02",
		})
	}

	var (
		created       *entity.RecurringAgreement
		firstInstance *entity.ServiceInstance
	)
	evts, err := s.inTx(ctx, op, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, inst, err := s.store.Create(ctx, uow, entity.NewAgreement{
			ServiceType: req.ServiceType,
			Description: req.Description,
			ProviderId:  req.ProviderId,
			ClientId:    req.ClientId,
			Frequency:   freq,
			Amount:      req.Amount,
			Currency:    req.Currency,
			Location:    req.Location,
			ContractRef: req.ContractRef,
		}, first)
		if err != nil {
			return nil, err
		}
		created, firstInstance = a, inst
		return []pendingEvent{
			{events.AgreementStarted, agreementPayload(a)},
			{events.InstanceScheduled, instancePayload(inst)},
		}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("agreement.id", created.Id.String()))

	s.emit(ctx, evts)
	s.logger.Info("SCHEDULING", "Recurring service started", map[string]interface{}{
		"agreement_id": created.Id.String(),
		"frequency":    string(created.Frequency),
		"first_date":   schedule.FormatDate(firstInstance.ScheduledDate),
	})

	return &dto.StartRecurringServiceResponse{
		Agreement:       toAgreementResponse(created),
		CurrentInstance: toInstanceResponse(firstInstance),
	}, nil
}

func (s *schedulingService) GetAgreement(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementResponse, error) {
	if cached, ok := s.cache.Get(ctx, agreementID); ok {
		res := toAgreementResponse(cached)
		return &res, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// The snapshot is cached only while holding the agreement lock, so a
	// mutation cannot commit between this read and the Save. Without the lock
	// the read is still served, just not cached.
	release, lockErr := s.locker.Acquire(ctx, agreementID.String())
	if lockErr == nil {
		defer release()
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	a, err := s.store.Get(ctx, uow, agreementID)
	if err != nil {
		return nil, err
	}
	if lockErr == nil {
		s.cache.Save(ctx, a)
	} else {
		s.logger.Warn("SCHEDULING", "Agreement read not cached", map[string]interface{}{
			"agreement_id": agreementID.String(),
			"error":        lockErr.Error(),
		})
	}

	res := toAgreementResponse(a)
	return &res, nil
}

func (s *schedulingService) ListAgreements(ctx context.Context, req *dto.ListAgreementsRequest) ([]*dto.AgreementResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	agreements, err := s.store.List(ctx, uow, entity.AgreementFilter{
		Status:     entity.AgreementStatus(req.Status),
		ProviderId: req.ProviderId,
		ClientId:   req.ClientId,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		return nil, err
	}

	result := make([]*dto.AgreementResponse, 0, len(agreements))
	for _, a := range agreements {
		res := toAgreementResponse(a)
		result = append(result, &res)
	}
	return result, nil
}

func (s *schedulingService) PauseService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error) {
	var paused *entity.RecurringAgreement
	err := s.mutate(ctx, "pause agreement", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.store.Pause(ctx, uow, agreementID)
		if err != nil {
			return nil, err
		}
		paused = a
		return []pendingEvent{{events.AgreementPaused, agreementPayload(a)}}, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.AgreementTransitionResponse{Agreement: toAgreementResponse(paused)}, nil
}

func (s *schedulingService) ResumeService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error) {
	var (
		resumed *entity.RecurringAgreement
		created *entity.ServiceInstance
	)
	err := s.mutate(ctx, "resume agreement", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, inst, err := s.store.Resume(ctx, uow, agreementID, s.today())
		if err != nil {
			return nil, err
		}
		resumed, created = a, inst

		evts := []pendingEvent{{events.AgreementResumed, agreementPayload(a)}}
		if inst != nil {
			evts = append(evts, pendingEvent{events.InstanceScheduled, instancePayload(inst)})
		}
		return evts, nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.AgreementTransitionResponse{
		Agreement: toAgreementResponse(resumed),
		Instance:  toInstanceResponsePtr(created),
	}, nil
}

func (s *schedulingService) CancelService(ctx context.Context, agreementID uuid.UUID, reason string) (*dto.AgreementTransitionResponse, error) {
	var (
		cancelled *entity.RecurringAgreement
		closed    *entity.ServiceInstance
	)
	err := s.mutate(ctx, "cancel agreement", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, inst, err := s.store.Cancel(ctx, uow, agreementID, reason)
		if err != nil {
			return nil, err
		}
		cancelled, closed = a, inst

		evts := make([]pendingEvent, 0, 2)
		if inst != nil {
			evts = append(evts, pendingEvent{events.InstanceCancelled, instancePayload(inst)})
		}
		return append(evts, pendingEvent{events.AgreementCancelled, agreementPayload(a)}), nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.AgreementTransitionResponse{
		Agreement: toAgreementResponse(cancelled),
		Instance:  toInstanceResponsePtr(closed),
	}, nil
}

// CompleteService applies the external completion signal (contract end,
// occurrence count reached).
func (s *schedulingService) CompleteService(ctx context.Context, agreementID uuid.UUID) (*dto.AgreementTransitionResponse, error) {
	var (
		completed *entity.RecurringAgreement
		closed    *entity.ServiceInstance
	)
	err := s.mutate(ctx, "complete agreement", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, inst, err := s.store.Complete(ctx, uow, agreementID)
		if err != nil {
			return nil, err
		}
		completed, closed = a, inst

		evts := make([]pendingEvent, 0, 2)
		if inst != nil {
			evts = append(evts, pendingEvent{events.InstanceCancelled, instancePayload(inst)})
		}
		return append(evts, pendingEvent{events.AgreementCompleted, agreementPayload(a)}), nil
	})
	if err != nil {
		return nil, err
	}
	return &dto.AgreementTransitionResponse{
		Agreement: toAgreementResponse(completed),
		Instance:  toInstanceResponsePtr(closed),
	}, nil
}

func (s *schedulingService) UpdateAmount(ctx context.Context, agreementID uuid.UUID, amount int64) (*dto.AgreementResponse, error) {
	var updated *entity.RecurringAgreement
	err := s.mutate(ctx, "update amount", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		before, err := s.store.Get(ctx, uow, agreementID)
		if err != nil {
			return nil, err
		}
		previous := before.Amount

		a, err := s.store.UpdateAmount(ctx, uow, agreementID, amount)
		if err != nil {
			return nil, err
		}
		updated = a

		payload := agreementPayload(a)
		payload["previous_amount"] = previous
		payload["amount"] = a.Amount
		return []pendingEvent{{events.AgreementAmountChanged, payload}}, nil
	})
	if err != nil {
		return nil, err
	}
	res := toAgreementResponse(updated)
	return &res, nil
}

func (s *schedulingService) StartInstance(ctx context.Context, instanceID uuid.UUID) (*dto.InstanceTransitionResponse, error) {
	agreementID, err := s.agreementOf(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var res *dto.InstanceTransitionResponse
	err = s.mutate(ctx, "start instance", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, "start instance")
		if err != nil {
			return nil, err
		}
		inst, err := s.ledger.Transition(ctx, uow, instanceID, entity.InstanceActionStart, ledger.TransitionOptions{})
		if err != nil {
			return nil, err
		}
		if err := s.store.RecomputeAggregates(ctx, uow, a); err != nil {
			return nil, err
		}
		res = &dto.InstanceTransitionResponse{Instance: toInstanceResponse(inst), Agreement: toAgreementResponse(a)}
		return []pendingEvent{{events.InstanceStarted, instancePayload(inst)}}, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *schedulingService) CompleteCurrentInstance(ctx context.Context, agreementID uuid.UUID, req *dto.CompleteInstanceRequest) (*dto.InstanceTransitionResponse, error) {
	const op = "complete current instance"

	var res *dto.InstanceTransitionResponse
	err := s.mutate(ctx, op, agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, op)
		if err != nil {
			return nil, err
		}
		open, err := s.currentInstance(ctx, uow, a, op)
		if err != nil {
			return nil, err
		}
		var evts []pendingEvent
		res, evts, err = s.complete(ctx, uow, a, open, completeOutcome(req), true)
		return evts, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *schedulingService) CompleteInstance(ctx context.Context, instanceID uuid.UUID, req *dto.CompleteInstanceRequest) (*dto.InstanceTransitionResponse, error) {
	agreementID, err := s.agreementOf(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var res *dto.InstanceTransitionResponse
	err = s.mutate(ctx, "complete instance", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, "complete instance")
		if err != nil {
			return nil, err
		}
		inst, err := s.ledger.Get(ctx, uow, instanceID)
		if err != nil {
			return nil, err
		}
		var evts []pendingEvent
		res, evts, err = s.complete(ctx, uow, a, inst, completeOutcome(req), false)
		return evts, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// complete finishes inst. With autoStart a scheduled instance is started first
// in the same transaction, so completing the current occurrence reports start
// and finish together. Addressed by id, a scheduled instance must be started
// explicitly and completing it is InvalidState.
func (s *schedulingService) complete(ctx context.Context, uow unitofwork.UnitOfWork, a *entity.RecurringAgreement, inst *entity.ServiceInstance, outcome entity.Outcome, autoStart bool) (*dto.InstanceTransitionResponse, []pendingEvent, error) {
	evts := make([]pendingEvent, 0, 3)

	if autoStart && inst.Status == entity.InstanceStatusScheduled {
		// A completion reported after the fact also dates the start, so the
		// work never appears to finish before it began.
		startOpts := ledger.TransitionOptions{}
		if at := outcome.CompletedAt; at != nil && at.Before(s.clock()) {
			startOpts.StartedAt = at
		}
		started, err := s.ledger.Transition(ctx, uow, inst.Id, entity.InstanceActionStart, startOpts)
		if err != nil {
			return nil, nil, err
		}
		evts = append(evts, pendingEvent{events.InstanceStarted, instancePayload(started)})
	}

	done, err := s.ledger.Transition(ctx, uow, inst.Id, entity.InstanceActionComplete, ledger.TransitionOptions{Outcome: outcome})
	if err != nil {
		return nil, nil, err
	}
	evts = append(evts, pendingEvent{events.InstanceCompleted, instancePayload(done)})

	next, err := s.advance(ctx, uow, a, done)
	if err != nil {
		return nil, nil, err
	}
	if next != nil {
		evts = append(evts, pendingEvent{events.InstanceScheduled, instancePayload(next)})
	}

	return &dto.InstanceTransitionResponse{
		Instance:     toInstanceResponse(done),
		NextInstance: toInstanceResponsePtr(next),
		Agreement:    toAgreementResponse(a),
	}, evts, nil
}

func (s *schedulingService) CancelCurrentInstance(ctx context.Context, agreementID uuid.UUID, reason string) (*dto.InstanceTransitionResponse, error) {
	const op = "cancel current instance"

	var res *dto.InstanceTransitionResponse
	err := s.mutate(ctx, op, agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, op)
		if err != nil {
			return nil, err
		}
		open, err := s.currentInstance(ctx, uow, a, op)
		if err != nil {
			return nil, err
		}
		var evts []pendingEvent
		res, evts, err = s.cancel(ctx, uow, a, open.Id, reason)
		return evts, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *schedulingService) CancelInstance(ctx context.Context, instanceID uuid.UUID, reason string) (*dto.InstanceTransitionResponse, error) {
	agreementID, err := s.agreementOf(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var res *dto.InstanceTransitionResponse
	err = s.mutate(ctx, "cancel instance", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, "cancel instance")
		if err != nil {
			return nil, err
		}
		var evts []pendingEvent
		res, evts, err = s.cancel(ctx, uow, a, instanceID, reason)
		return evts, err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// cancel closes one occurrence. The series continues while the agreement is
// active.
func (s *schedulingService) cancel(ctx context.Context, uow unitofwork.UnitOfWork, a *entity.RecurringAgreement, instanceID uuid.UUID, reason string) (*dto.InstanceTransitionResponse, []pendingEvent, error) {
	cancelled, err := s.ledger.Transition(ctx, uow, instanceID, entity.InstanceActionCancel, ledger.TransitionOptions{Reason: reason})
	if err != nil {
		return nil, nil, err
	}
	evts := []pendingEvent{{events.InstanceCancelled, instancePayload(cancelled)}}

	next, err := s.advance(ctx, uow, a, cancelled)
	if err != nil {
		return nil, nil, err
	}
	if next != nil {
		evts = append(evts, pendingEvent{events.InstanceScheduled, instancePayload(next)})
	}

	return &dto.InstanceTransitionResponse{
		Instance:     toInstanceResponse(cancelled),
		NextInstance: toInstanceResponsePtr(next),
		Agreement:    toAgreementResponse(a),
	}, evts, nil
}

func (s *schedulingService) RecordOutcome(ctx context.Context, instanceID uuid.UUID, req *dto.RecordOutcomeRequest) (*dto.InstanceResponse, error) {
	agreementID, err := s.agreementOf(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	var updated *entity.ServiceInstance
	err = s.mutate(ctx, "record outcome", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		a, err := s.openAgreement(ctx, uow, agreementID, "record outcome")
		if err != nil {
			return nil, err
		}
		inst, err := s.ledger.RecordOutcome(ctx, uow, instanceID, entity.Outcome{
			ProviderNotes: req.Notes,
			ClientNotes:   req.ClientNotes,
			Photos:        req.Photos,
			Rating:        req.Rating,
		})
		if err != nil {
			return nil, err
		}
		// A rating changes the average.
		if err := s.store.RecomputeAggregates(ctx, uow, a); err != nil {
			return nil, err
		}
		updated = inst
		return []pendingEvent{{events.InstanceOutcomeRecorded, instancePayload(inst)}}, nil
	})
	if err != nil {
		return nil, err
	}
	res := toInstanceResponse(updated)
	return &res, nil
}

func (s *schedulingService) ListInstances(ctx context.Context, agreementID uuid.UUID) ([]*dto.InstanceResponse, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if _, err := s.store.Get(ctx, uow, agreementID); err != nil {
		return nil, err
	}

	result := make([]*dto.InstanceResponse, 0)
	for inst, err := range s.ledger.ListByAgreement(ctx, uow, agreementID) {
		if err != nil {
			return nil, apperror.WithContext(err, "agreement_id", agreementID.String())
		}
		res := toInstanceResponse(inst)
		result = append(result, &res)
	}
	return result, nil
}

func (s *schedulingService) MarkMissedIfOverdue(ctx context.Context, instanceID uuid.UUID) (*dto.MarkMissedResponse, error) {
	agreementID, err := s.agreementOf(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return s.markMissed(ctx, agreementID, instanceID, s.today())
}

func (s *schedulingService) markMissed(ctx context.Context, agreementID, instanceID uuid.UUID, today time.Time) (*dto.MarkMissedResponse, error) {
	var res *dto.MarkMissedResponse
	err := s.mutate(ctx, "mark missed", agreementID, func(ctx context.Context, uow unitofwork.UnitOfWork) ([]pendingEvent, error) {
		inst, marked, err := s.ledger.MarkMissedIfOverdue(ctx, uow, instanceID, today, s.opts.MissedGraceDays)
		if err != nil {
			return nil, err
		}
		res = &dto.MarkMissedResponse{Marked: marked, Instance: toInstanceResponse(inst)}
		if !marked {
			return nil, nil
		}

		a, err := s.store.Get(ctx, uow, agreementID)
		if err != nil {
			return nil, err
		}
		evts := []pendingEvent{{events.InstanceMissed, instancePayload(inst)}}

		next, err := s.advance(ctx, uow, a, inst)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res.NextInstance = toInstanceResponsePtr(next)
			evts = append(evts, pendingEvent{events.InstanceScheduled, instancePayload(next)})
		}
		return evts, nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// advance recomputes the agreement's aggregates after inst reached a terminal
// status and, while the agreement is active, materializes the next
// occurrence. After a missed occurrence the series resumes on or after today.
func (s *schedulingService) advance(ctx context.Context, uow unitofwork.UnitOfWork, a *entity.RecurringAgreement, inst *entity.ServiceInstance) (*entity.ServiceInstance, error) {
	var next *entity.ServiceInstance
	if a.Status == entity.AgreementStatusActive && inst.Status.IsTerminal() {
		date := schedule.NextDate(inst.ScheduledDate, a.Frequency)
		if inst.Status == entity.InstanceStatusMissed {
			date = schedule.NextOnOrAfter(inst.ScheduledDate, a.Frequency, s.today())
		}

		created, err := s.ledger.CreateInstance(ctx, uow, a, date)
		if err != nil {
			return nil, err
		}
		next = created
	}

	if err := s.store.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, err
	}
	return next, nil
}

// openAgreement loads the agreement and rejects terminal ones.
func (s *schedulingService) openAgreement(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID, op string) (*entity.RecurringAgreement, error) {
	a, err := s.store.Get(ctx, uow, agreementID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperror.InvalidState(op, "agreement is closed", string(a.Status))
	}
	return a, nil
}

func (s *schedulingService) currentInstance(ctx context.Context, uow unitofwork.UnitOfWork, a *entity.RecurringAgreement, op string) (*entity.ServiceInstance, error) {
	open, err := s.ledger.OpenInstance(ctx, uow, a.Id)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, apperror.InvalidState(op, "agreement has no open instance", string(a.Status))
	}
	return open, nil
}

func completeOutcome(req *dto.CompleteInstanceRequest) entity.Outcome {
	if req == nil {
		return entity.Outcome{}
	}
	return entity.Outcome{
		ProviderNotes: req.Notes,
		ClientNotes:   req.ClientNotes,
		Photos:        req.Photos,
		Rating:        req.Rating,
		CompletedAt:   req.CompletedAt,
	}
}
