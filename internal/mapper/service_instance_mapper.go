package mapper

import (
	"encoding/json"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/model"
	"rent360-scheduling-be/pkg/schedule"

	"gorm.io/datatypes"
)

type ServiceInstanceMapper struct{}

func NewServiceInstanceMapper() *ServiceInstanceMapper {
	return &ServiceInstanceMapper{}
}

func (m *ServiceInstanceMapper) ToEntity(i *model.ServiceInstance) *entity.ServiceInstance {
	if i == nil {
		return nil
	}

	photos := make([]string, 0)
	if len(i.Photos) > 0 {
		// A malformed column degrades to an empty list rather than failing the read.
		_ = json.Unmarshal(i.Photos, &photos)
	}

	return &entity.ServiceInstance{
		Id:                 i.Id,
		AgreementId:        i.AgreementId,
		Sequence:           i.Sequence,
		ScheduledDate:      schedule.Normalize(i.ScheduledDate),
		Status:             entity.InstanceStatus(i.Status),
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

func (m *ServiceInstanceMapper) ToModel(i *entity.ServiceInstance) *model.ServiceInstance {
	if i == nil {
		return nil
	}

	photos := i.Photos
	if photos == nil {
		photos = []string{}
	}
	raw, _ := json.Marshal(photos)

	return &model.ServiceInstance{
		Id:                 i.Id,
		AgreementId:        i.AgreementId,
		Sequence:           i.Sequence,
		ScheduledDate:      i.ScheduledDate,
		Status:             string(i.Status),
		Amount:             i.Amount,
		StartedAt:          i.StartedAt,
		CompletedAt:        i.CompletedAt,
		CancelledAt:        i.CancelledAt,
		MissedAt:           i.MissedAt,
		CancellationReason: i.CancellationReason,
		ProviderNotes:      i.ProviderNotes,
		ClientNotes:        i.ClientNotes,
		Photos:             datatypes.JSON(raw),
		Rating:             i.Rating,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
	}
}

func (m *ServiceInstanceMapper) ToEntities(instances []*model.ServiceInstance) []*entity.ServiceInstance {
	entities := make([]*entity.ServiceInstance, len(instances))
	for i, inst := range instances {
		entities[i] = m.ToEntity(inst)
	}
	return entities
}
