// Package agreement owns recurring agreement records and enforces the
// agreement status machine. Like the ledger it works inside the caller's unit
// of work.
package agreement

import (
	"context"
	"strings"
	"time"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/specification"
	"rent360-scheduling-be/internal/repository/unitofwork"
	"rent360-scheduling-be/pkg/apperror"
	"rent360-scheduling-be/pkg/schedule"
	"rent360-scheduling-be/pkg/scheduling/ledger"

	"github.com/google/uuid"
)

const (
	DefaultCurrency  = "CLP"
	DefaultListLimit = 50
)

type Store struct {
	ledger *ledger.Ledger
	clock  schedule.Clock
}

func New(l *ledger.Ledger, clock schedule.Clock) *Store {
	if clock == nil {
		clock = schedule.SystemClock
	}
	return &Store{ledger: l, clock: clock}
}

func (s *Store) Get(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.RecurringAgreement, error) {
	a, err := uow.RecurringAgreementRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, apperror.FromPersistence("get agreement", err)
	}
	if a == nil {
		return nil, apperror.NotFound("get agreement", "agreement", id.String())
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, uow unitofwork.UnitOfWork, filter entity.AgreementFilter) ([]*entity.RecurringAgreement, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	specs := make([]specification.Specification, 0, 5)
	if filter.Status != "" {
		specs = append(specs, specification.AgreementStatusIs{Status: filter.Status})
	}
	if filter.ProviderId != "" {
		specs = append(specs, specification.ProvidedBy{ProviderID: filter.ProviderId})
	}
	if filter.ClientId != "" {
		specs = append(specs, specification.OwnedByClient{ClientID: filter.ClientId})
	}
	specs = append(specs,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: filter.Limit, Offset: filter.Offset},
	)

	agreements, err := uow.RecurringAgreementRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperror.FromPersistence("list agreements", err)
	}
	return agreements, nil
}

// Create starts an active agreement and materializes its first instance.
func (s *Store) Create(ctx context.Context, uow unitofwork.UnitOfWork, req entity.NewAgreement, firstOccurrence time.Time) (*entity.RecurringAgreement, *entity.ServiceInstance, error) {
	const op = "start recurring service"

	if err := validateNewAgreement(op, req, firstOccurrence); err != nil {
		return nil, nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	now := s.clock()
	a := &entity.RecurringAgreement{
		Id:          uuid.New(),
		ServiceType: strings.TrimSpace(req.ServiceType),
		Description: req.Description,
		ProviderId:  req.ProviderId,
		ClientId:    req.ClientId,
		Frequency:   req.Frequency,
		Amount:      req.Amount,
		Currency:    currency,
		Location:    req.Location,
		ContractRef: req.ContractRef,
		Status:      entity.AgreementStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uow.RecurringAgreementRepository().Create(ctx, a); err != nil {
		return nil, nil, apperror.FromPersistence(op, err)
	}

	inst, err := s.ledger.CreateInstance(ctx, uow, a, firstOccurrence)
	if err != nil {
		return nil, nil, err
	}
	if err := s.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, nil, err
	}
	return a, inst, nil
}

// Pause leaves any in-flight instance untouched.
func (s *Store) Pause(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.RecurringAgreement, error) {
	a, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	if a.Status != entity.AgreementStatusActive {
		return nil, apperror.InvalidState("pause agreement", "only active agreements can be paused", string(a.Status))
	}

	now := s.clock()
	a.Status = entity.AgreementStatusPaused
	a.PausedAt = &now
	if err := s.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Resume reactivates a paused agreement. When nothing is open, the next
// occurrence is computed from today rather than from the original schedule.
func (s *Store) Resume(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, today time.Time) (*entity.RecurringAgreement, *entity.ServiceInstance, error) {
	a, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != entity.AgreementStatusPaused {
		return nil, nil, apperror.InvalidState("resume agreement", "only paused agreements can be resumed", string(a.Status))
	}

	a.Status = entity.AgreementStatusActive
	a.PausedAt = nil

	open, err := s.ledger.OpenInstance(ctx, uow, a.Id)
	if err != nil {
		return nil, nil, err
	}

	var created *entity.ServiceInstance
	if open == nil {
		next := schedule.NextDate(schedule.Normalize(today), a.Frequency)
		created, err = s.ledger.CreateInstance(ctx, uow, a, next)
		if err != nil {
			return nil, nil, err
		}
	}
	if err := s.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, nil, err
	}
	return a, created, nil
}

// Cancel is terminal. Any open instance is force-cancelled.
func (s *Store) Cancel(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, reason string) (*entity.RecurringAgreement, *entity.ServiceInstance, error) {
	a, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != entity.AgreementStatusActive && a.Status != entity.AgreementStatusPaused {
		return nil, nil, apperror.InvalidState("cancel agreement", "agreement is already closed", string(a.Status))
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "agreement cancelled"
	}
	cancelled, err := s.closeOpenInstance(ctx, uow, a.Id, reason)
	if err != nil {
		return nil, nil, err
	}

	now := s.clock()
	a.Status = entity.AgreementStatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = reason
	if err := s.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, nil, err
	}
	return a, cancelled, nil
}

// Complete records the externally supplied completion signal.
func (s *Store) Complete(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID) (*entity.RecurringAgreement, *entity.ServiceInstance, error) {
	a, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != entity.AgreementStatusActive {
		return nil, nil, apperror.InvalidState("complete agreement", "only active agreements can be completed", string(a.Status))
	}

	cancelled, err := s.closeOpenInstance(ctx, uow, a.Id, "agreement completed")
	if err != nil {
		return nil, nil, err
	}

	now := s.clock()
	a.Status = entity.AgreementStatusCompleted
	a.CompletedAt = &now
	if err := s.RecomputeAggregates(ctx, uow, a); err != nil {
		return nil, nil, err
	}
	return a, cancelled, nil
}

// UpdateAmount changes the price of future instances only.
func (s *Store) UpdateAmount(ctx context.Context, uow unitofwork.UnitOfWork, id uuid.UUID, amount int64) (*entity.RecurringAgreement, error) {
	const op = "update amount"

	if amount <= 0 {
		return nil, apperror.Validation(op, "invalid amount", map[string]string{"amount": "must be greater than zero"})
	}
	a, err := s.Get(ctx, uow, id)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, apperror.InvalidState(op, "agreement is closed", string(a.Status))
	}

	a.Amount = amount
	a.UpdatedAt = s.clock()
	if err := uow.RecurringAgreementRepository().Update(ctx, a); err != nil {
		return nil, apperror.FromPersistence(op, err)
	}
	return a, nil
}

// RecomputeAggregates rebuilds the counters, the average rating and the next
// scheduled date from the ledger and saves the agreement.
func (s *Store) RecomputeAggregates(ctx context.Context, uow unitofwork.UnitOfWork, a *entity.RecurringAgreement) error {
	agg, err := s.ledger.Aggregate(ctx, uow, a.Id)
	if err != nil {
		return err
	}

	a.TotalInstances = agg.Total
	a.CompletedInstances = agg.Completed
	a.CancelledInstances = agg.Cancelled
	a.MissedInstances = agg.Missed
	a.RatedInstances = agg.Rated
	a.AverageRating = agg.AverageRating
	a.NextScheduledDate = nil
	if agg.Open != nil {
		d := agg.Open.ScheduledDate
		a.NextScheduledDate = &d
	}
	a.UpdatedAt = s.clock()

	if err := uow.RecurringAgreementRepository().Update(ctx, a); err != nil {
		return apperror.FromPersistence("recompute aggregates", err)
	}
	return nil
}

func (s *Store) closeOpenInstance(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID, reason string) (*entity.ServiceInstance, error) {
	open, err := s.ledger.OpenInstance(ctx, uow, agreementID)
	if err != nil || open == nil {
		return nil, err
	}
	return s.ledger.Transition(ctx, uow, open.Id, entity.InstanceActionCancel, ledger.TransitionOptions{Reason: reason})
}

func validateNewAgreement(op string, req entity.NewAgreement, firstOccurrence time.Time) error {
	fields := map[string]string{}
	if strings.TrimSpace(req.ServiceType) == "" {
		fields["service_type"] = "is required"
	}
	if strings.TrimSpace(req.ProviderId) == "" {
		fields["provider_id"] = "is required"
	}
	if strings.TrimSpace(req.ClientId) == "" {
		fields["client_id"] = "is required"
	}
	if !req.Frequency.Valid() {
		fields["frequency"] = "must be one of daily, weekly, biweekly, monthly, quarterly"
	}
	if req.Amount <= 0 {
		fields["amount"] = "must be greater than zero"
	}
	if firstOccurrence.IsZero() {
		fields["first_occurrence_date"] = "is required"
	}
	if len(fields) > 0 {
		return apperror.Validation(op, "invalid recurring service request", fields)
	}
	return nil
}
