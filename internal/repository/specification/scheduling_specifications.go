package specification

import (
	"time"

	"rent360-scheduling-be/internal/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByAgreementID struct {
	AgreementID uuid.UUID
}

func (s ByAgreementID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("agreement_id = ?", s.AgreementID)
}

type InstanceStatusIn struct {
	Statuses []entity.InstanceStatus
}

func (s InstanceStatusIn) Apply(db *gorm.DB) *gorm.DB {
	values := make([]string, len(s.Statuses))
	for i, st := range s.Statuses {
		values[i] = string(st)
	}
	return db.Where("status IN ?", values)
}

// OpenInstances matches the occurrence that is scheduled or in progress.
func OpenInstances() Specification {
	return InstanceStatusIn{Statuses: entity.OpenInstanceStatuses}
}

type ScheduledBefore struct {
	Date time.Time
}

func (s ScheduledBefore) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("scheduled_date < ?", s.Date)
}

// ScheduledBetween is inclusive on both ends.
type ScheduledBetween struct {
	From time.Time
	To   time.Time
}

func (s ScheduledBetween) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("scheduled_date >= ? AND scheduled_date <= ?", s.From, s.To)
}

type AgreementStatusIs struct {
	Status entity.AgreementStatus
}

func (s AgreementStatusIs) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", string(s.Status))
}

type ProvidedBy struct {
	ProviderID string
}

func (s ProvidedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("provider_id = ?", s.ProviderID)
}

type OwnedByClient struct {
	ClientID string
}

func (s OwnedByClient) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("client_id = ?", s.ClientID)
}

// InstanceHistoryAfter is the keyset cursor for InstanceHistoryOrder: rows that
// sort strictly after (ScheduledDate, Sequence).
type InstanceHistoryAfter struct {
	ScheduledDate time.Time
	Sequence      int
}

func (s InstanceHistoryAfter) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("scheduled_date > ? OR (scheduled_date = ? AND sequence > ?)", s.ScheduledDate, s.ScheduledDate, s.Sequence)
}

// InstanceHistoryOrder is the stable ordering of an agreement's history.
func InstanceHistoryOrder() []Specification {
	return []Specification{
		OrderBy{Field: "scheduled_date"},
		OrderBy{Field: "sequence"},
	}
}
