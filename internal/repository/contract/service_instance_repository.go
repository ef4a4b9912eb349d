package contract

import (
	"context"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/specification"
)

// Instances are an audit trail and are never deleted.
type ServiceInstanceRepository interface {
	Create(ctx context.Context, instance *entity.ServiceInstance) error
	Update(ctx context.Context, instance *entity.ServiceInstance) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ServiceInstance, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ServiceInstance, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
