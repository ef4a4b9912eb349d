package entity

import (
	"time"

	"rent360-scheduling-be/pkg/schedule"

	"github.com/google/uuid"
)

type AgreementStatus string

const (
	AgreementStatusActive    AgreementStatus = "active"
	AgreementStatusPaused    AgreementStatus = "paused"
	AgreementStatusCancelled AgreementStatus = "cancelled"
	AgreementStatusCompleted AgreementStatus = "completed"
)

// IsTerminal reports whether no further transitions are possible.
func (s AgreementStatus) IsTerminal() bool {
	return s == AgreementStatusCancelled || s == AgreementStatusCompleted
}

type RecurringAgreement struct {
	Id          uuid.UUID
	ServiceType string
	Description string
	ProviderId  string
	ClientId    string
	Frequency   schedule.Frequency
	Amount      int64 // minor currency units
	Currency    string
	Location    string
	ContractRef *string
	Status      AgreementStatus

	// Derived from the instance ledger by a full recompute.
	TotalInstances     int
	CompletedInstances int
	CancelledInstances int
	MissedInstances    int
	RatedInstances     int
	AverageRating      *float64

	NextScheduledDate  *time.Time
	PausedAt           *time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewAgreement is the caller supplied part of an agreement.
type NewAgreement struct {
	ServiceType string
	Description string
	ProviderId  string
	ClientId    string
	Frequency   schedule.Frequency
	Amount      int64
	Currency    string
	Location    string
	ContractRef *string
}

type AgreementFilter struct {
	Status     AgreementStatus
	ProviderId string
	ClientId   string
	Limit      int
	Offset     int
}
