package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/infra/database/models"
	"github.com/cityflow/cityflow/internal/usecase"
)

type ComplaintRepository struct {
	db *gorm.DB
}

func NewComplaintRepository(db *gorm.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

var complaintColumns = []string{
	"title", "description", "category_id", "status", "priority", "latitude", "longitude",
	"photo_url", "is_anonymous", "reject_reason", "updated_at",
}

func preloadPhotos(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func (r *ComplaintRepository) Create(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error) {
	m := complaintToModel(complaint)
	err := conn(ctx, r.db).Omit(clause.Associations).Create(&m).Error
	if err != nil {
		return domain.Complaint{}, translate(err, "complaint")
	}
	return complaintFromModel(m), nil
}

func (r *ComplaintRepository) Get(ctx context.Context, id int64) (domain.Complaint, error) {
	var m models.Complaint
	err := conn(ctx, r.db).
		Preload("Photos", preloadPhotos).
		Where("id = ?", id).
		Take(&m).Error
	if err != nil {
		return domain.Complaint{}, translate(err, "complaint")
	}
	return complaintFromModel(m), nil
}

func (r *ComplaintRepository) GetForUpdate(ctx context.Context, id int64) (domain.Complaint, error) {
	var m models.Complaint
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&m).Error
	if err != nil {
		return domain.Complaint{}, translate(err, "complaint")
	}
	return complaintFromModel(m), nil
}

func (r *ComplaintRepository) Update(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error) {
	m := complaintToModel(complaint)
	result := conn(ctx, r.db).
		Model(&models.Complaint{ID: complaint.ID}).
		Select(complaintColumns).
		Updates(&m)
	if result.Error != nil {
		return domain.Complaint{}, translate(result.Error, "complaint")
	}
	if result.RowsAffected == 0 {
		return domain.Complaint{}, domain.NotFoundError{Resource: "complaint"}
	}
	return r.Get(ctx, complaint.ID)
}

func (r *ComplaintRepository) Delete(ctx context.Context, id int64) error {
	result := conn(ctx, r.db).Delete(&models.Complaint{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "complaint")
	}
	if result.RowsAffected == 0 {
		return domain.NotFoundError{Resource: "complaint"}
	}
	return nil
}

func (r *ComplaintRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Complaint, error) {
	var rows []models.Complaint
	err := conn(ctx, r.db).
		Preload("Photos", preloadPhotos).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "complaint")
	}
	return complaintsFromModels(rows), nil
}

func (r *ComplaintRepository) Feed(ctx context.Context, query usecase.FeedQuery) ([]domain.Complaint, error) {
	q := conn(ctx, r.db).Preload("Photos", preloadPhotos)

	switch query.Sort {
	case domain.FeedPopular:
		q = q.Order("support_count DESC, created_at DESC")
	case domain.FeedNearby:
		lat, lon := *query.Latitude, *query.Longitude
		q = q.Where("latitude IS NOT NULL AND longitude IS NOT NULL").
			Clauses(clause.OrderBy{Expression: clause.Expr{
				SQL:                "(latitude - ?) * (latitude - ?) + (longitude - ?) * (longitude - ?), created_at DESC",
				Vars:               []any{lat, lat, lon, lon},
				WithoutParentheses: true,
			}})
	default:
		q = q.Order("created_at DESC")
	}

	var rows []models.Complaint
	if err := q.Limit(query.Limit).Find(&rows).Error; err != nil {
		return nil, translate(err, "complaint")
	}
	return complaintsFromModels(rows), nil
}

func (r *ComplaintRepository) AddPhoto(ctx context.Context, complaintID int64, url string) (domain.ComplaintPhoto, error) {
	m := models.ComplaintPhoto{
		ComplaintID: complaintID,
		PhotoURL:    url,
	}
	err := conn(ctx, r.db).Create(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return domain.ComplaintPhoto{}, domain.NotFoundError{Resource: "complaint"}
		}
		return domain.ComplaintPhoto{}, translate(err, "complaint photo")
	}
	return photoFromModel(m), nil
}

func (r *ComplaintRepository) AdjustSupportCount(ctx context.Context, id int64, delta int) (int, error) {
	db := conn(ctx, r.db)
	result := db.Model(&models.Complaint{}).
		Where("id = ?", id).
		UpdateColumn("support_count", gorm.Expr("support_count + ?", delta))
	if result.Error != nil {
		return 0, translate(result.Error, "complaint")
	}
	if result.RowsAffected == 0 {
		return 0, domain.NotFoundError{Resource: "complaint"}
	}

	var count int
	err := db.Model(&models.Complaint{}).
		Where("id = ?", id).
		Select("support_count").
		Scan(&count).Error
	if err != nil {
		return 0, translate(err, "complaint")
	}
	return count, nil
}

func complaintToModel(c domain.Complaint) models.Complaint {
	return models.Complaint{
		ID:           c.ID,
		UserID:       c.UserID,
		Title:        c.Title,
		Description:  c.Description,
		CategoryID:   c.CategoryID,
		Status:       string(c.Status),
		Priority:     string(c.Priority),
		Latitude:     c.Latitude,
		Longitude:    c.Longitude,
		PhotoURL:     c.PhotoURL,
		IsAnonymous:  c.IsAnonymous,
		SupportCount: c.SupportCount,
		RejectReason: c.RejectReason,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func complaintFromModel(m models.Complaint) domain.Complaint {
	photos := make([]domain.ComplaintPhoto, 0, len(m.Photos))
	for _, p := range m.Photos {
		photos = append(photos, photoFromModel(p))
	}
	return domain.Complaint{
		ID:           m.ID,
		UserID:       m.UserID,
		Title:        m.Title,
		Description:  m.Description,
		CategoryID:   m.CategoryID,
		Status:       domain.ComplaintStatus(m.Status),
		Priority:     domain.Priority(m.Priority),
		Latitude:     m.Latitude,
		Longitude:    m.Longitude,
		PhotoURL:     m.PhotoURL,
		Photos:       photos,
		IsAnonymous:  m.IsAnonymous,
		SupportCount: m.SupportCount,
		RejectReason: m.RejectReason,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func complaintsFromModels(rows []models.Complaint) []domain.Complaint {
	result := make([]domain.Complaint, 0, len(rows))
	for _, m := range rows {
		result = append(result, complaintFromModel(m))
	}
	return result
}

func photoFromModel(m models.ComplaintPhoto) domain.ComplaintPhoto {
	return domain.ComplaintPhoto{
		ID:          m.ID,
		ComplaintID: m.ComplaintID,
		PhotoURL:    m.PhotoURL,
		CreatedAt:   m.CreatedAt,
	}
}

var _ usecase.ComplaintRepository = (*ComplaintRepository)(nil)
