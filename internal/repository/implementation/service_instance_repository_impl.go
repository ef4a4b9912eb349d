package implementation

import (
	"context"
	"errors"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/mapper"
	"rent360-scheduling-be/internal/model"
	"rent360-scheduling-be/internal/repository/contract"
	"rent360-scheduling-be/internal/repository/specification"

	"gorm.io/gorm"
)

type ServiceInstanceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ServiceInstanceMapper
}

func NewServiceInstanceRepository(db *gorm.DB) contract.ServiceInstanceRepository {
	return &ServiceInstanceRepositoryImpl{
		db:     db,
		mapper: mapper.NewServiceInstanceMapper(),
	}
}

func (r *ServiceInstanceRepositoryImpl) Create(ctx context.Context, instance *entity.ServiceInstance) error {
	m := r.mapper.ToModel(instance)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*instance = *r.mapper.ToEntity(m)
	return nil
}

// Update never writes the amount column: an occurrence keeps the price it was
// materialized with.
func (r *ServiceInstanceRepositoryImpl) Update(ctx context.Context, instance *entity.ServiceInstance) error {
	m := r.mapper.ToModel(instance)
	if err := r.db.WithContext(ctx).Omit("Amount", "AgreementId", "Sequence", "CreatedAt").Save(m).Error; err != nil {
		return err
	}
	*instance = *r.mapper.ToEntity(m)
	return nil
}

func (r *ServiceInstanceRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ServiceInstance, error) {
	var m model.ServiceInstance
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ServiceInstanceRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ServiceInstance, error) {
	var models []*model.ServiceInstance
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ServiceInstanceRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.ServiceInstance{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
