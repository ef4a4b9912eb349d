package model

import (
	"time"

	"github.com/google/uuid"
)

type RecurringAgreement struct {
	Id                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ServiceType        string     `gorm:"type:varchar(120);not null"`
	Description        string     `gorm:"type:text"`
	ProviderId         string     `gorm:"type:varchar(64);not null;index"`
	ClientId           string     `gorm:"type:varchar(64);not null;index"`
	Frequency          string     `gorm:"type:varchar(20);not null"`
	Amount             int64      `gorm:"not null"`
	Currency           string     `gorm:"type:varchar(3);not null;default:'CLP'"`
	Location           string     `gorm:"type:text"`
	ContractRef        *string    `gorm:"type:varchar(64)"`
	Status             string     `gorm:"type:varchar(20);not null;index"`
	TotalInstances     int        `gorm:"not null;default:0"`
	CompletedInstances int        `gorm:"not null;default:0"`
	CancelledInstances int        `gorm:"not null;default:0"`
	MissedInstances    int        `gorm:"not null;default:0"`
	RatedInstances     int        `gorm:"not null;default:0"`
	AverageRating      *float64   `gorm:"type:decimal(3,2)"`
	NextScheduledDate  *time.Time `gorm:"type:date"`
	PausedAt           *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	CancellationReason string    `gorm:"type:text"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`

	Instances []ServiceInstance `gorm:"foreignKey:AgreementId;constraint:OnDelete:RESTRICT"`
}

func (RecurringAgreement) TableName() string {
	return "recurring_agreements"
}
