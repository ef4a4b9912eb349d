package service

import (
	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/pkg/schedule"
)

func toAgreementResponse(a *entity.RecurringAgreement) dto.AgreementResponse {
	res := dto.AgreementResponse{
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
		AverageRating:      a.AverageRating,
		PausedAt:           a.PausedAt,
		CancelledAt:        a.CancelledAt,
		CompletedAt:        a.CompletedAt,
		CancellationReason: a.CancellationReason,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
	if a.NextScheduledDate != nil {
		d := schedule.FormatDate(*a.NextScheduledDate)
		res.NextScheduledDate = &d
	}
	return res
}

func toInstanceResponse(i *entity.ServiceInstance) dto.InstanceResponse {
	photos := i.Photos
	if photos == nil {
		photos = []string{}
	}
	return dto.InstanceResponse{
		Id:                 i.Id,
		AgreementId:        i.AgreementId,
		Sequence:           i.Sequence,
		ScheduledDate:      schedule.FormatDate(i.ScheduledDate),
		Status:             string(i.Status),
		Amount:             i.Amount,
		StartedAt:          i.StartedAt,
		CompletedAt:        i.CompletedAt,
		CancelledAt:        i.CancelledAt,
		MissedAt:           i.MissedAt,
		CancellationReason: i.CancellationReason,
		ProviderNotes:      i.ProviderNotes,
		ClientNotes:        i.ClientNotes,
		Photos:             photos,
		Rating:             i.Rating,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

func toInstanceResponsePtr(i *entity.ServiceInstance) *dto.InstanceResponse {
	if i == nil {
		return nil
	}
	res := toInstanceResponse(i)
	return &res
}

func agreementPayload(a *entity.RecurringAgreement) map[string]interface{} {
	payload := map[string]interface{}{
		"agreement_id": a.Id.String(),
		"status":       string(a.Status),
		"service_type": a.ServiceType,
		"provider_id":  a.ProviderId,
		"client_id":    a.ClientId,
		"frequency":    string(a.Frequency),
	}
	if a.NextScheduledDate != nil {
		payload["next_scheduled_date"] = schedule.FormatDate(*a.NextScheduledDate)
	}
	if a.CancellationReason != "" {
		payload["reason"] = a.CancellationReason
	}
	return payload
}

func instancePayload(i *entity.ServiceInstance) map[string]interface{} {
	payload := map[string]interface{}{
		"instance_id":    i.Id.String(),
		"agreement_id":   i.AgreementId.String(),
		"sequence":       i.Sequence,
		"scheduled_date": schedule.FormatDate(i.ScheduledDate),
		"status":         string(i.Status),
		"amount":         i.Amount,
	}
	if i.Rating != nil {
		payload["rating"] = *i.Rating
	}
	if i.CancellationReason != "" {
		payload["reason"] = i.CancellationReason
	}
	return payload
}
