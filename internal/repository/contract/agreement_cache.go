package contract

import (
	"context"

	"rent360-scheduling-be/internal/entity"

	"github.com/google/uuid"
)

// AgreementCache holds read snapshots of agreements. Save and Invalidate must
// run under the agreement lock so a stale read cannot overwrite a newer
// invalidation. Every replica must see the same cache.
type AgreementCache interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.RecurringAgreement, bool)
	Save(ctx context.Context, agreement *entity.RecurringAgreement)
	Invalidate(ctx context.Context, id uuid.UUID) error
}
