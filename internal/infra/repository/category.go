package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/infra/database/models"
	"github.com/cityflow/cityflow/internal/usecase"
)

type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) Create(ctx context.Context, category domain.Category) (domain.Category, error) {
	m := categoryToModel(category)
	// IsActive false would otherwise be swallowed by the column default
	err := conn(ctx, r.db).Select("name", "description", "is_active").Create(&m).Error
	if err != nil {
		return domain.Category{}, translate(err, "category")
	}
	return categoryFromModel(m), nil
}

func (r *CategoryRepository) Get(ctx context.Context, id int64) (domain.Category, error) {
	var m models.Category
	err := conn(ctx, r.db).Where("id = ?", id).Take(&m).Error
	if err != nil {
		return domain.Category{}, translate(err, "category")
	}
	return categoryFromModel(m), nil
}

func (r *CategoryRepository) GetByName(ctx context.Context, name string) (domain.Category, error) {
	var m models.Category
	err := conn(ctx, r.db).Where("name = ?", name).Take(&m).Error
	if err != nil {
		return domain.Category{}, translate(err, "category")
	}
	return categoryFromModel(m), nil
}

func (r *CategoryRepository) Update(ctx context.Context, category domain.Category) (domain.Category, error) {
	m := categoryToModel(category)
	result := conn(ctx, r.db).
		Model(&models.Category{ID: category.ID}).
		Select("name", "description", "is_active").
		Updates(&m)
	if result.Error != nil {
		return domain.Category{}, translate(result.Error, "category")
	}
	if result.RowsAffected == 0 {
		return domain.Category{}, domain.NotFoundError{Resource: "category"}
	}
	return categoryFromModel(m), nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	result := conn(ctx, r.db).Delete(&models.Category{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "category")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "category"}
	}
	return nil
}

func (r *CategoryRepository) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	q := conn(ctx, r.db)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}

	var rows []models.Category
	if err := q.Order("name ASC").Find(&rows).Error; err != nil {
		return nil, translate(err, "category")
	}

	result := make([]domain.Category, 0, len(rows))
	for _, m := range rows {
		result = append(result, categoryFromModel(m))
	}
	return result, nil
}

func categoryToModel(c domain.Category) models.Category {
	return models.Category{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
	}
}

func categoryFromModel(m models.Category) domain.Category {
	return domain.Category{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		IsActive:    m.IsActive,
	}
}

var _ usecase.CategoryRepository = (*CategoryRepository)(nil)
