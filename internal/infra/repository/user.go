package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/infra/database/models"
	"github.com/cityflow/cityflow/internal/usecase"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id int64) (domain.User, error) {
	var m models.User
	err := conn(ctx, r.db).Where("id = ?", id).Take(&m).Error
	if err != nil {
		return domain.User{}, translate(err, "user")
	}
	return domain.User{
		ID:               m.ID,
		Name:             m.Name,
		Email:            m.Email,
		Role:             domain.Role(m.Role),
		ProfileCompleted: m.ProfileCompleted,
		IsActive:         m.IsActive,
		CreatedAt:        m.CreatedAt,
	}, nil
}

var _ usecase.UserRepository = (*UserRepository)(nil)
