// Package ledger owns service instance records and their status machine.
// Every method runs inside the caller's unit of work; the caller holds the
// agreement lock and decides when to commit.
package ledger

import (
	"context"
	"iter"
	"strings"
	"time"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/specification"
	"rent360-scheduling-be/internal/repository/unitofwork"
	"rent360-scheduling-be/pkg/apperror"
	"rent360-scheduling-be/pkg/schedule"

	"github.com/google/uuid"
)

const defaultPageSize = 50

var transitions = map[entity.InstanceStatus]map[entity.InstanceAction]entity.InstanceStatus{
	entity.InstanceStatusScheduled: {
		entity.InstanceActionStart:  entity.InstanceStatusInProgress,
		entity.InstanceActionCancel: entity.InstanceStatusCancelled,
		entity.InstanceActionMiss:   entity.InstanceStatusMissed,
	},
	entity.InstanceStatusInProgress: {
		entity.InstanceActionComplete: entity.InstanceStatusCompleted,
		entity.InstanceActionCancel:   entity.InstanceStatusCancelled,
	},
}

// CanTransition reports whether action is legal from status.
func CanTransition(status entity.InstanceStatus, action entity.InstanceAction) bool {
	_, ok := transitions[status][action]
	return ok
}

type TransitionOptions struct {
	Outcome entity.Outcome
	Reason  string
	// StartedAt backdates a start. It defaults to now and may not be later.
	StartedAt *time.Time
}

type Ledger struct {
	clock    schedule.Clock
	pageSize int
}

func New(clock schedule.Clock) *Ledger {
	if clock == nil {
		clock = schedule.SystemClock
	}
	return &Ledger{clock: clock, pageSize: defaultPageSize}
}

func (l *Ledger) Get(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.ServiceInstance, error) {
	inst, err := uow.ServiceInstanceRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, apperror.FromPersistence("get instance", err)
	}
	if inst == nil {
		return nil, apperror.NotFound("get instance", "instance", id.String())
	}
	return inst, nil
}

// OpenInstance returns the scheduled or in-progress occurrence, or nil.
func (l *Ledger) OpenInstance(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID) (*entity.ServiceInstance, error) {
	inst, err := uow.ServiceInstanceRepository().FindOne(ctx,
		specification.ByAgreementID{AgreementID: agreementID},
		specification.OpenInstances(),
		specification.OrderBy{Field: "sequence"},
	)
	if err != nil {
		return nil, apperror.FromPersistence("find open instance", err)
	}
	return inst, nil
}

// CreateInstance materializes the next occurrence with the agreement's current
// amount.
func (l *Ledger) CreateInstance(ctx context.Context, uow unitofwork.UnitOfWork, agreement *entity.RecurringAgreement, scheduledDate time.Time) (*entity.ServiceInstance, error) {
	const op = "create instance"

	open, err := l.OpenInstance(ctx, uow, agreement.Id)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, apperror.InvalidState(op, "agreement already has an open instance", string(open.Status))
	}

	repo := uow.ServiceInstanceRepository()
	count, err := repo.Count(ctx, specification.ByAgreementID{AgreementID: agreement.Id})
	if err != nil {
		return nil, apperror.FromPersistence(op, err)
	}

	now := l.clock()
	inst := &entity.ServiceInstance{
		Id:            uuid.New(),
		AgreementId:   agreement.Id,
		Sequence:      int(count) + 1,
		ScheduledDate: schedule.Normalize(scheduledDate),
		Status:        entity.InstanceStatusScheduled,
		Amount:        agreement.Amount,
		Photos:        []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := repo.Create(ctx, inst); err != nil {
		return nil, apperror.FromPersistence(op, err)
	}
	return inst, nil
}

// Transition applies action to the instance. Illegal actions leave the record
// untouched and return InvalidState.
func (l *Ledger) Transition(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, action entity.InstanceAction, opts TransitionOptions) (*entity.ServiceInstance, error) {
	inst, err := l.Get(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	if err := l.apply(inst, action, opts); err != nil {
		return nil, err
	}
	if err := uow.ServiceInstanceRepository().Update(ctx, inst); err != nil {
		return nil, apperror.FromPersistence(string(action)+" instance", err)
	}
	return inst, nil
}

func (l *Ledger) apply(inst *entity.ServiceInstance, action entity.InstanceAction, opts TransitionOptions) error {
	op := string(action) + " instance"

	next, ok := transitions[inst.Status][action]
	if !ok {
		return apperror.InvalidState(op, "transition not allowed from current status", string(inst.Status))
	}
	if action == entity.InstanceActionComplete {
		if err := validateOutcome(op, opts.Outcome); err != nil {
			return err
		}
	}

	now := l.clock()
	switch next {
	case entity.InstanceStatusInProgress:
		startedAt := now
		if opts.StartedAt != nil {
			if opts.StartedAt.After(now) {
				return apperror.Validation(op, "invalid start time", map[string]string{
					"started_at": "must not be in the future",
				})
			}
			startedAt = *opts.StartedAt
		}
		inst.StartedAt = &startedAt
	case entity.InstanceStatusCompleted:
		completedAt := now
		if opts.Outcome.CompletedAt != nil {
			if err := validateCompletedAt(op, *opts.Outcome.CompletedAt, inst.StartedAt, now); err != nil {
				return err
			}
			completedAt = *opts.Outcome.CompletedAt
		}
		inst.CompletedAt = &completedAt
		mergeOutcome(inst, opts.Outcome)
	case entity.InstanceStatusCancelled:
		inst.CancelledAt = &now
		inst.CancellationReason = strings.TrimSpace(opts.Reason)
	case entity.InstanceStatusMissed:
		inst.MissedAt = &now
	}
	inst.Status = next
	inst.UpdatedAt = now
	return nil
}

// RecordOutcome attaches notes, photos or a rating while the work is in
// progress or after it completed.
func (l *Ledger) RecordOutcome(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, outcome entity.Outcome) (*entity.ServiceInstance, error) {
	const op = "record outcome"

	inst, err := l.Get(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	if inst.Status != entity.InstanceStatusInProgress && inst.Status != entity.InstanceStatusCompleted {
		return nil, apperror.InvalidState(op, "outcome can only be recorded on in-progress or completed instances", string(inst.Status))
	}
	if err := validateOutcome(op, outcome); err != nil {
		return nil, err
	}
	mergeOutcome(inst, outcome)
	inst.UpdatedAt = l.clock()

	if err := uow.ServiceInstanceRepository().Update(ctx, inst); err != nil {
		return nil, apperror.FromPersistence(op, err)
	}
	return inst, nil
}

// ListByAgreement yields the agreement's instances ordered by scheduled date.
// Pages are fetched on demand after the last row seen, so rows written
// between pages neither repeat nor push existing rows out of the listing.
// Every range over the result starts again from the first instance.
func (l *Ledger) ListByAgreement(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID) iter.Seq2[*entity.ServiceInstance, error] {
	return func(yield func(*entity.ServiceInstance, error) bool) {
		var last *entity.ServiceInstance
		for {
			specs := []specification.Specification{specification.ByAgreementID{AgreementID: agreementID}}
			if last != nil {
				specs = append(specs, specification.InstanceHistoryAfter{ScheduledDate: last.ScheduledDate, Sequence: last.Sequence})
			}
			specs = append(specs, specification.InstanceHistoryOrder()...)
			specs = append(specs, specification.Pagination{Limit: l.pageSize})

			page, err := uow.ServiceInstanceRepository().FindAll(ctx, specs...)
			if err != nil {
				yield(nil, apperror.FromPersistence("list instances", err))
				return
			}
			for _, inst := range page {
				if !yield(inst, nil) {
					return
				}
			}
			if len(page) < l.pageSize {
				return
			}
			last = page[len(page)-1]
		}
	}
}

// Collect drains ListByAgreement into a slice.
func (l *Ledger) Collect(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID) ([]*entity.ServiceInstance, error) {
	result := make([]*entity.ServiceInstance, 0)
	for inst, err := range l.ListByAgreement(ctx, uow, agreementID) {
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

// IsOverdue reports whether a scheduled instance has passed its date plus the
// grace period as of today.
func IsOverdue(inst *entity.ServiceInstance, today time.Time, graceDays int) bool {
	if inst.Status != entity.InstanceStatusScheduled {
		return false
	}
	return inst.ScheduledDate.AddDate(0, 0, graceDays).Before(schedule.Normalize(today))
}

// MarkMissedIfOverdue moves an overdue scheduled instance to missed. Running it
// again, or on an instance that is not overdue, changes nothing.
func (l *Ledger) MarkMissedIfOverdue(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, today time.Time, graceDays int) (*entity.ServiceInstance, bool, error) {
	inst, err := l.Get(ctx, uow, id)
	if err != nil {
		return nil, false, err
	}
	if !IsOverdue(inst, today, graceDays) {
		return inst, false, nil
	}
	if err := l.apply(inst, entity.InstanceActionMiss, TransitionOptions{}); err != nil {
		return nil, false, err
	}
	if err := uow.ServiceInstanceRepository().Update(ctx, inst); err != nil {
		return nil, false, apperror.FromPersistence("mark missed", err)
	}
	return inst, true, nil
}

// FindScheduledBefore lists scheduled instances across agreements whose date
// is before cutoff.
func (l *Ledger) FindScheduledBefore(ctx context.Context, uow unitofwork.UnitOfWork, cutoff time.Time) ([]*entity.ServiceInstance, error) {
	insts, err := uow.ServiceInstanceRepository().FindAll(ctx,
		specification.InstanceStatusIn{Statuses: []entity.InstanceStatus{entity.InstanceStatusScheduled}},
		specification.ScheduledBefore{Date: cutoff},
		specification.OrderBy{Field: "scheduled_date"},
	)
	if err != nil {
		return nil, apperror.FromPersistence("find overdue instances", err)
	}
	return insts, nil
}

// FindScheduledBetween lists scheduled instances due in [from, to].
func (l *Ledger) FindScheduledBetween(ctx context.Context, uow unitofwork.UnitOfWork, from, to time.Time) ([]*entity.ServiceInstance, error) {
	insts, err := uow.ServiceInstanceRepository().FindAll(ctx,
		specification.InstanceStatusIn{Statuses: []entity.InstanceStatus{entity.InstanceStatusScheduled}},
		specification.ScheduledBetween{From: from, To: to},
		specification.OrderBy{Field: "scheduled_date"},
	)
	if err != nil {
		return nil, apperror.FromPersistence("find upcoming instances", err)
	}
	return insts, nil
}

func validateOutcome(op string, outcome entity.Outcome) error {
	fields := map[string]string{}
	if outcome.Rating != nil && (*outcome.Rating < 1 || *outcome.Rating > 5) {
		fields["rating"] = "must be between 1 and 5"
	}
	for _, p := range outcome.Photos {
		if strings.TrimSpace(p) == "" {
			fields["photos"] = "photo references must not be empty"
			break
		}
	}
	if len(fields) > 0 {
		return apperror.Validation(op, "invalid outcome", fields)
	}
	return nil
}

// validateCompletedAt bounds a reported completion time by the start of the
// work and the current time.
func validateCompletedAt(op string, completedAt time.Time, startedAt *time.Time, now time.Time) error {
	switch {
	case completedAt.After(now):
		return apperror.Validation(op, "invalid outcome", map[string]string{
			"completed_at": "must not be in the future",
		})
	case startedAt != nil && completedAt.Before(*startedAt):
		return apperror.Validation(op, "invalid outcome", map[string]string{
			"completed_at": "must not be before the instance was started",
		})
	}
	return nil
}

func mergeOutcome(inst *entity.ServiceInstance, outcome entity.Outcome) {
	if outcome.ProviderNotes != nil {
		inst.ProviderNotes = *outcome.ProviderNotes
	}
	if outcome.ClientNotes != nil {
		inst.ClientNotes = *outcome.ClientNotes
	}
	if len(outcome.Photos) > 0 {
		inst.Photos = append(inst.Photos, outcome.Photos...)
	}
	if outcome.Rating != nil {
		r := *outcome.Rating
		inst.Rating = &r
	}
}
