package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/infra/database/models"
	"github.com/cityflow/cityflow/internal/usecase"
)

type SupportRepository struct {
	db *gorm.DB
}

func NewSupportRepository(db *gorm.DB) *SupportRepository {
	return &SupportRepository{db: db}
}

func (r *SupportRepository) Exists(ctx context.Context, complaintID, userID int64) (bool, error) {
	var count int64
	err := conn(ctx, r.db).
		Model(&models.ComplaintSupport{}).
		Where("complaint_id = ? AND user_id = ?", complaintID, userID).
		Count(&count).Error
	if err != nil {
		return false, translate(err, "support")
	}
	return count > 0, nil
}

// Create relies on the composite primary key to refuse a duplicate pair.
func (r *SupportRepository) Create(ctx context.Context, complaintID, userID int64) error {
	err := conn(ctx, r.db).
		Omit("Complaint", "User").
		Create(&models.ComplaintSupport{ComplaintID: complaintID, UserID: userID}).Error
	return translate(err, "support")
}

func (r *SupportRepository) Delete(ctx context.Context, complaintID, userID int64) error {
	err := conn(ctx, r.db).
		Where("complaint_id = ? AND user_id = ?", complaintID, userID).
		Delete(&models.ComplaintSupport{}).Error
	return translate(err, "support")
}

func (r *SupportRepository) List(ctx context.Context, complaintID int64) ([]domain.Support, error) {
	var rows []models.ComplaintSupport
	err := conn(ctx, r.db).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "support")
	}

	result := make([]domain.Support, 0, len(rows))
	for _, m := range rows {
		result = append(result, domain.Support{
			ComplaintID: m.ComplaintID,
			UserID:      m.UserID,
			CreatedAt:   m.CreatedAt,
		})
	}
	return result, nil
}

type RatingRepository struct {
	db *gorm.DB
}

func NewRatingRepository(db *gorm.DB) *RatingRepository {
	return &RatingRepository{db: db}
}

func (r *RatingRepository) Create(ctx context.Context, rating domain.Rating) (domain.Rating, error) {
	m := models.ComplaintRating{
		ComplaintID: rating.ComplaintID,
		UserID:      rating.UserID,
		Rating:      rating.Rating,
		Comment:     rating.Comment,
	}
	if err := conn(ctx, r.db).Omit("Complaint").Create(&m).Error; err != nil {
		return domain.Rating{}, translate(err, "rating")
	}
	return ratingFromModel(m), nil
}

func (r *RatingRepository) List(ctx context.Context, complaintID int64) ([]domain.Rating, error) {
	var rows []models.ComplaintRating
	err := conn(ctx, r.db).
		Where("complaint_id = ?", complaintID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "rating")
	}

	result := make([]domain.Rating, 0, len(rows))
	for _, m := range rows {
		result = append(result, ratingFromModel(m))
	}
	return result, nil
}

func ratingFromModel(m models.ComplaintRating) domain.Rating {
	return domain.Rating{
		ID:          m.ID,
		ComplaintID: m.ComplaintID,
		UserID:      m.UserID,
		Rating:      m.Rating,
		Comment:     m.Comment,
		CreatedAt:   m.CreatedAt,
	}
}

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create always uses the base connection, never the caller's transaction.
func (r *AuditRepository) Create(ctx context.Context, log domain.AuditLog) error {
	m := models.AuditLog{
		ActorUserID: log.ActorUserID,
		Action:      log.Action,
		TargetType:  log.TargetType,
		TargetID:    log.TargetID,
		Detail:      log.Detail,
		CreatedAt:   log.CreatedAt,
	}
	return translate(r.db.WithContext(ctx).Create(&m).Error, "audit log")
}

var (
	_ usecase.SupportRepository = (*SupportRepository)(nil)
	_ usecase.RatingRepository  = (*RatingRepository)(nil)
	_ usecase.AuditRepository   = (*AuditRepository)(nil)
)
