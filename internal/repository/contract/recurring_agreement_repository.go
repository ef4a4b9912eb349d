package contract

import (
	"context"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/specification"
)

// Agreements are never deleted; cancellation is a status.
type RecurringAgreementRepository interface {
	Create(ctx context.Context, agreement *entity.RecurringAgreement) error
	Update(ctx context.Context, agreement *entity.RecurringAgreement) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecurringAgreement, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecurringAgreement, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
