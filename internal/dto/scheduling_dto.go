package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartRecurringServiceRequest struct {
	ServiceType         string  `json:"service_type" validate:"required,max=100"`
	Description         string  `json:"description" validate:"max=2000"`
	ProviderId          string  `json:"provider_id" validate:"required,max=64"`
	ClientId            string  `json:"client_id" validate:"required,max=64"`
	Frequency           string  `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly quarterly"`
	Amount              int64   `json:"amount" validate:"gt=0"`
	Currency            string  `json:"currency" validate:"omitempty,len=3"`
	Location            string  `json:"location" validate:"max=500"`
	ContractRef         *string `json:"contract_ref" validate:"omitempty,max=100"`
	FirstOccurrenceDate string  `json:"first_occurrence_date" validate:"required,datetime=2006-01-02"`
}

type StartRecurringServiceResponse struct {
	Agreement       AgreementResponse `json:"agreement"`
	CurrentInstance InstanceResponse  `json:"current_instance"`
}

type ListAgreementsRequest struct {
	Status     string `query:"status" json:"status" validate:"omitempty,oneof=active paused cancelled completed"`
	ProviderId string `query:"provider_id" json:"provider_id"`
	ClientId   string `query:"client_id" json:"client_id"`
	Limit      int    `query:"limit" json:"limit" validate:"omitempty,min=1,max=200"`
	Offset     int    `query:"offset" json:"offset" validate:"omitempty,min=0"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type UpdateAmountRequest struct {
	Amount int64 `json:"amount" validate:"gt=0"`
}

// CompleteInstanceRequest is the outcome supplied when an occurrence is
// finished. completed_at defaults to the time of the request.
type CompleteInstanceRequest struct {
	Notes       *string    `json:"notes" validate:"omitempty,max=2000"`
	ClientNotes *string    `json:"client_notes" validate:"omitempty,max=2000"`
	Photos      []string   `json:"photos" validate:"omitempty,max=20,dive,required,max=500"`
	Rating      *int       `json:"rating" validate:"omitempty,min=1,max=5"`
	CompletedAt *time.Time `json:"completed_at"`
}

type RecordOutcomeRequest struct {
	Notes       *string  `json:"notes" validate:"omitempty,max=2000"`
	ClientNotes *string  `json:"client_notes" validate:"omitempty,max=2000"`
	Photos      []string `json:"photos" validate:"omitempty,max=20,dive,required,max=500"`
	Rating      *int     `json:"rating" validate:"omitempty,min=1,max=5"`
}

type AgreementResponse struct {
	Id                 uuid.UUID  `json:"id"`
	ServiceType        string     `json:"service_type"`
	Description        string     `json:"description"`
	ProviderId         string     `json:"provider_id"`
	ClientId           string     `json:"client_id"`
	Frequency          string     `json:"frequency"`
	Amount             int64      `json:"amount"`
	Currency           string     `json:"currency"`
	Location           string     `json:"location"`
	ContractRef        *string    `json:"contract_ref"`
	Status             string     `json:"status"`
	TotalInstances     int        `json:"total_instances"`
	CompletedInstances int        `json:"completed_instances"`
	CancelledInstances int        `json:"cancelled_instances"`
	MissedInstances    int        `json:"missed_instances"`
	AverageRating      *float64   `json:"average_rating"`
	NextScheduledDate  *string    `json:"next_scheduled_date"`
	PausedAt           *time.Time `json:"paused_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type InstanceResponse struct {
	Id                 uuid.UUID  `json:"id"`
	AgreementId        uuid.UUID  `json:"agreement_id"`
	Sequence           int        `json:"sequence"`
	ScheduledDate      string     `json:"scheduled_date"`
	Status             string     `json:"status"`
	Amount             int64      `json:"amount"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	MissedAt           *time.Time `json:"missed_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	ProviderNotes      string     `json:"notes,omitempty"`
	ClientNotes        string     `json:"client_notes,omitempty"`
	Photos             []string   `json:"photos"`
	Rating             *int       `json:"rating"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// AgreementTransitionResponse is returned by pause, resume, cancel and
// complete. Instance is the occurrence the transition created or closed.
type AgreementTransitionResponse struct {
	Agreement AgreementResponse `json:"agreement"`
	Instance  *InstanceResponse `json:"instance,omitempty"`
}

// InstanceTransitionResponse is returned by instance operations. NextInstance
// is set when the transition materialized the following occurrence.
type InstanceTransitionResponse struct {
	Instance     InstanceResponse  `json:"instance"`
	NextInstance *InstanceResponse `json:"next_instance,omitempty"`
	Agreement    AgreementResponse `json:"agreement"`
}

type MarkMissedResponse struct {
	Marked       bool              `json:"marked"`
	Instance     InstanceResponse  `json:"instance"`
	NextInstance *InstanceResponse `json:"next_instance,omitempty"`
}

type SweepReportResponse struct {
	Today        string   `json:"today"`
	Checked      int      `json:"checked"`
	Missed       int      `json:"missed"`
	Materialized int      `json:"materialized"`
	Reminded     int      `json:"reminded"`
	Failures     []string `json:"failures,omitempty"`
}
