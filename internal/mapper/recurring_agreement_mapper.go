package mapper

import (
	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/model"
	"rent360-scheduling-be/pkg/schedule"
)

type RecurringAgreementMapper struct{}

func NewRecurringAgreementMapper() *RecurringAgreementMapper {
	return &RecurringAgreementMapper{}
}

func (m *RecurringAgreementMapper) ToEntity(a *model.RecurringAgreement) *entity.RecurringAgreement {
	if a == nil {
		return nil
	}

	var next = a.NextScheduledDate
	if next != nil {
		d := schedule.Normalize(*next)
		next = &d
	}

	return &entity.RecurringAgreement{
		Id:                 a.Id,
		ServiceType:        a.ServiceType,
		Description:        a.Description,
		ProviderId:         a.ProviderId,
		ClientId:           a.ClientId,
		Frequency:          schedule.Frequency(a.Frequency),
		Amount:             a.Amount,
		Currency:           a.Currency,
		Location:           a.Location,
		ContractRef:        a.ContractRef,
		Status:             entity.AgreementStatus(a.Status),
		TotalInstances:     a.TotalInstances,
		CompletedInstances: a.CompletedInstances,
		CancelledInstances: a.CancelledInstances,
		MissedInstances:    a.MissedInstances,
		RatedInstances:     a.RatedInstances,
		AverageRating:      a.AverageRating,
		NextScheduledDate:  next,
		PausedAt:           a.PausedAt,
		CancelledAt:        a.CancelledAt,
		CompletedAt:        a.CompletedAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (m *RecurringAgreementMapper) ToModel(a *entity.RecurringAgreement) *model.RecurringAgreement {
	if a == nil {
		return nil
	}
	return &model.RecurringAgreement{
		Id:                 a.Id,
		ServiceType:        a.ServiceType,
		Description:        a.Description,
		ProviderId:         a.ProviderId,
		ClientId:           a.ClientId,
		Frequency:          string(a.Frequency),
		Amount:             a.Amount,
		Currency:           a.Currency,
		Location:           a.Location,
		ContractRef:        a.ContractRef,
		Status:             string(a.Status),
		TotalInstances:     a.TotalInstances,
		CompletedInstances: a.CompletedInstances,
		CancelledInstances: a.CancelledInstances,
		MissedInstances:    a.MissedInstances,
		RatedInstances:     a.RatedInstances,
		AverageRating:      a.AverageRating,
		NextScheduledDate:  a.NextScheduledDate,
		PausedAt:           a.PausedAt,
		CancelledAt:        a.CancelledAt,
		CompletedAt:        a.CompletedAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func (m *RecurringAgreementMapper) ToEntities(agreements []*model.RecurringAgreement) []*entity.RecurringAgreement {
	entities := make([]*entity.RecurringAgreement, len(agreements))
	for i, a := range agreements {
		entities[i] = m.ToEntity(a)
	}
	return entities
}
