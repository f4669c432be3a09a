package usecase

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/policy"
)

type CategoryInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"isActive"`
}

type CategoryUsecase struct {
	categories CategoryRepository
	gate       Authorizer
	effects    *Effects
}

func NewCategoryUsecase(categories CategoryRepository, gate Authorizer, effects *Effects) *CategoryUsecase {
	return &CategoryUsecase{
		categories: categories,
		gate:       gate,
		effects:    effects,
	}
}

func (uc *CategoryUsecase) Create(ctx context.Context, actor domain.Actor, input CategoryInput) (domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Category.Usecase.Create")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionCategoryWrite, nil, nil); err != nil {
		return domain.Category{}, err
	}

	name := ""
	if input.Name != nil {
		name = strings.TrimSpace(*input.Name)
	}
	if name == "" {
		return domain.Category{}, domain.ValidationError{Message: "kategori adı boş olamaz"}
	}

	_, err := uc.categories.GetByName(ctx, name)
	if err == nil {
		return domain.Category{}, domain.ConflictError{Message: "category already exists"}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return domain.Category{}, err
	}

	category := domain.Category{
		Name:        name,
		Description: trimmedOrNil(input.Description),
		IsActive:    true,
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	created, err := uc.categories.Create(ctx, category)
	if err != nil {
		span.RecordError(err)
		return domain.Category{}, err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionCreateCategory, domain.AuditTargetCategory, created.ID, created.Name))
	return created, nil
}

func (uc *CategoryUsecase) Update(ctx context.Context, actor domain.Actor, id int64, input CategoryInput) (domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Category.Usecase.Update")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionCategoryWrite, nil, nil); err != nil {
		return domain.Category{}, err
	}

	category, err := uc.categories.Get(ctx, id)
	if err != nil {
		return domain.Category{}, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return domain.Category{}, domain.ValidationError{Message: "kategori adı boş olamaz"}
		}
		if name != category.Name {
			if _, err := uc.categories.GetByName(ctx, name); err == nil {
				return domain.Category{}, domain.ConflictError{Message: "category already exists"}
			} else if !errors.Is(err, domain.ErrNotFound) {
				return domain.Category{}, err
			}
		}
		category.Name = name
	}
	if input.Description != nil {
		category.Description = trimmedOrNil(input.Description)
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	updated, err := uc.categories.Update(ctx, category)
	if err != nil {
		span.RecordError(err)
		return domain.Category{}, err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionUpdateCategory, domain.AuditTargetCategory, updated.ID, updated.Name))
	return updated, nil
}

func (uc *CategoryUsecase) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	ctx, span := tracer.Start(ctx, "Category.Usecase.Delete")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionCategoryWrite, nil, nil); err != nil {
		return err
	}
	if err := uc.categories.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionDeleteCategory, domain.AuditTargetCategory, id, ""))
	return nil
}

func (uc *CategoryUsecase) Get(ctx context.Context, id int64) (domain.Category, error) {
	return uc.categories.Get(ctx, id)
}

func (uc *CategoryUsecase) List(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Category.Usecase.List")
	defer span.End()

	return uc.categories.List(ctx, activeOnly)
}
