package unitofwork

import (
	"context"

	"rent360-scheduling-be/internal/repository/contract"
)

// UnitOfWork scopes repositories to one transaction once Begin is called.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	InTransaction() bool

	RecurringAgreementRepository() contract.RecurringAgreementRepository
	ServiceInstanceRepository() contract.ServiceInstanceRepository
}
