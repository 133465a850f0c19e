package repository

import (
	"github.com/google/uuid"
	"github.com/tnqbao/gau-review-orchestrator/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewBaseRepository struct {
	db *gorm.DB
}

func NewReviewBaseRepository(db *gorm.DB) *ReviewBaseRepository {
	return &ReviewBaseRepository{db: db}
}

func (r *ReviewBaseRepository) Create(base *entity.ReviewBase) error {
	return r.db.Create(base).Error
}

func (r *ReviewBaseRepository) FindByID(id uint64, ownerID uuid.UUID) (*entity.ReviewBase, error) {
	var base entity.ReviewBase
	err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&base).Error
	if err != nil {
		return nil, err
	}
	return &base, nil
}

func (r *ReviewBaseRepository) FindByTable(ownerID uuid.UUID, baseID, tableName string) (*entity.ReviewBase, error) {
	var base entity.ReviewBase
	err := r.db.Where("owner_id = ? AND base_id = ? AND table_name = ?", ownerID, baseID, tableName).
		First(&base).Error
	if err != nil {
		return nil, err
	}
	return &base, nil
}

func (r *ReviewBaseRepository) FindByOwner(ownerID uuid.UUID) ([]entity.ReviewBase, error) {
	var bases []entity.ReviewBase
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&bases).Error
	if err != nil {
		return nil, err
	}
	return bases, nil
}

func (r *ReviewBaseRepository) UpdateMappings(id uint64, ownerID uuid.UUID, mappings entity.FieldMappings) error {
	return r.db.Model(&entity.ReviewBase{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("field_mappings", datatypes.NewJSONType(mappings)).Error
}

func (r *ReviewBaseRepository) UpdateInstructions(id uint64, ownerID uuid.UUID, instructions string) error {
	return r.db.Model(&entity.ReviewBase{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("custom_instructions", instructions).Error
}

func (r *ReviewBaseRepository) Delete(id uint64, ownerID uuid.UUID) (bool, error) {
	result := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&entity.ReviewBase{})
	return result.RowsAffected > 0, result.Error
}
