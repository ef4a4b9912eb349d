package entity

import (
	"time"

	"github.com/google/uuid"
)

type InstanceStatus string

const (
	InstanceStatusScheduled  InstanceStatus = "scheduled"
	InstanceStatusInProgress InstanceStatus = "in_progress"
	InstanceStatusCompleted  InstanceStatus = "completed"
	InstanceStatusCancelled  InstanceStatus = "cancelled"
	InstanceStatusMissed     InstanceStatus = "missed"
)

// IsOpen reports whether the instance still occupies the agreement's single
// active occurrence slot.
func (s InstanceStatus) IsOpen() bool {
	return s == InstanceStatusScheduled || s == InstanceStatusInProgress
}

func (s InstanceStatus) IsTerminal() bool {
	return !s.IsOpen()
}

// OpenInstanceStatuses is the set used when querying for the open occurrence.
var OpenInstanceStatuses = []InstanceStatus{InstanceStatusScheduled, InstanceStatusInProgress}

type InstanceAction string

const (
	InstanceActionStart    InstanceAction = "start"
	InstanceActionComplete InstanceAction = "complete"
	InstanceActionCancel   InstanceAction = "cancel"
	InstanceActionMiss     InstanceAction = "miss"
)

type ServiceInstance struct {
	Id                 uuid.UUID
	AgreementId        uuid.UUID
	Sequence           int
	ScheduledDate      time.Time
	Status             InstanceStatus
	Amount             int64 // copied from the agreement at materialization, never updated
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CancelledAt        *time.Time
	MissedAt           *time.Time
	CancellationReason string
	ProviderNotes      string
	ClientNotes        string
	Photos             []string
	Rating             *int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Outcome is what a provider or client attaches to an occurrence.
type Outcome struct {
	ProviderNotes *string
	ClientNotes   *string
	Photos        []string
	Rating        *int
	CompletedAt   *time.Time
}
