package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ServiceInstance struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	AgreementId        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_instance_agreement_sequence"`
	Sequence           int       `gorm:"not null;uniqueIndex:idx_instance_agreement_sequence"`
	ScheduledDate      time.Time `gorm:"type:date;not null;index"`
	Status             string    `gorm:"type:varchar(20);not null;index"`
	Amount             int64     `gorm:"not null"`
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	MissedAt           *time.Time
	CancellationReason string         `gorm:"type:text"`
	ProviderNotes      string         `gorm:"type:text"`
	ClientNotes        string         `gorm:"type:text"`
	Photos             datatypes.JSON `gorm:"type:json"`
	Rating             *int
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

func (ServiceInstance) TableName() string {
	return "service_instances"
}
