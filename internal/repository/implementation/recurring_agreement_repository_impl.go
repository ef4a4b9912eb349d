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

type RecurringAgreementRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RecurringAgreementMapper
}

func NewRecurringAgreementRepository(db *gorm.DB) contract.RecurringAgreementRepository {
	return &RecurringAgreementRepositoryImpl{
		db:     db,
		mapper: mapper.NewRecurringAgreementMapper(),
	}
}

func (r *RecurringAgreementRepositoryImpl) Create(ctx context.Context, agreement *entity.RecurringAgreement) error {
	m := r.mapper.ToModel(agreement)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*agreement = *r.mapper.ToEntity(m)
	return nil
}

func (r *RecurringAgreementRepositoryImpl) Update(ctx context.Context, agreement *entity.RecurringAgreement) error {
	m := r.mapper.ToModel(agreement)
	// Save writes zero values too, which matters for cleared dates and counters.
	if err := r.db.WithContext(ctx).Omit("Instances").Save(m).Error; err != nil {
		return err
	}
	*agreement = *r.mapper.ToEntity(m)
	return nil
}

func (r *RecurringAgreementRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RecurringAgreement, error) {
	var m model.RecurringAgreement
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RecurringAgreementRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RecurringAgreement, error) {
	var models []*model.RecurringAgreement
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RecurringAgreementRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.RecurringAgreement{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
