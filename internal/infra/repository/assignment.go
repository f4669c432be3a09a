package repository

import (
	"context"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/infra/database/models"
	"github.com/cityflow/cityflow/internal/usecase"
)

type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts the assignment. A second active assignment for the same
// complaint trips the partial unique index and comes back as a ConflictError.
func (r *AssignmentRepository) Create(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	m := assignmentToModel(assignment)
	err := conn(ctx, r.db).Omit(clause.Associations).Create(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Assignment{}, domain.ConflictError{Message: "already assigned or in progress"}
		}
		return domain.Assignment{}, translate(err, "assignment")
	}
	return assignmentFromModel(m), nil
}

func (r *AssignmentRepository) Get(ctx context.Context, id int64) (domain.Assignment, error) {
	var m models.Assignment
	err := conn(ctx, r.db).Where("id = ?", id).Take(&m).Error
	if err != nil {
		return domain.Assignment{}, translate(err, "assignment")
	}
	return assignmentFromModel(m), nil
}

func (r *AssignmentRepository) GetForUpdate(ctx context.Context, id int64) (domain.Assignment, error) {
	var m models.Assignment
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&m).Error
	if err != nil {
		return domain.Assignment{}, translate(err, "assignment")
	}
	return assignmentFromModel(m), nil
}

func (r *AssignmentRepository) Update(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error) {
	m := assignmentToModel(assignment)
	result := conn(ctx, r.db).
		Model(&models.Assignment{ID: assignment.ID}).
		Select("employee_id", "status", "start_time", "end_time", "solution_photo_urls").
		Updates(&m)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return domain.Assignment{}, domain.ConflictError{Message: "already assigned or in progress"}
		}
		return domain.Assignment{}, translate(result.Error, "assignment")
	}
	if result.RowsAffected == 0 {
		return domain.Assignment{}, domain.NotFoundError{Resource: "assignment"}
	}
	return assignmentFromModel(m), nil
}

func (r *AssignmentRepository) FindActiveByComplaint(ctx context.Context, complaintID int64) (*domain.Assignment, error) {
	var rows []models.Assignment
	err := conn(ctx, r.db).
		Where("complaint_id = ? AND status IN ?", complaintID, activeStatuses()).
		Order("id DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, translate(err, "assignment")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	a := assignmentFromModel(rows[0])
	return &a, nil
}

func (r *AssignmentRepository) ListByEmployee(ctx context.Context, employeeID int64, statuses []domain.AssignmentStatus) ([]domain.Assignment, error) {
	q := conn(ctx, r.db).Where("employee_id = ?", employeeID)
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		q = q.Where("status IN ?", names)
	}

	var rows []models.Assignment
	if err := q.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, translate(err, "assignment")
	}

	result := make([]domain.Assignment, 0, len(rows))
	for _, m := range rows {
		result = append(result, assignmentFromModel(m))
	}
	return result, nil
}

func activeStatuses() []string {
	names := make([]string, 0, len(domain.ActiveAssignmentStatuses))
	for _, s := range domain.ActiveAssignmentStatuses {
		names = append(names, string(s))
	}
	return names
}

func assignmentToModel(a domain.Assignment) models.Assignment {
	urls := pq.StringArray(a.SolutionPhotoURLs)
	if urls == nil {
		urls = pq.StringArray{}
	}
	return models.Assignment{
		ID:                a.ID,
		ComplaintID:       a.ComplaintID,
		EmployeeID:        a.EmployeeID,
		Status:            string(a.Status),
		StartTime:         a.StartTime,
		EndTime:           a.EndTime,
		SolutionPhotoURLs: urls,
	}
}

func assignmentFromModel(m models.Assignment) domain.Assignment {
	urls := []string(m.SolutionPhotoURLs)
	if urls == nil {
		urls = []string{}
	}
	return domain.Assignment{
		ID:                m.ID,
		ComplaintID:       m.ComplaintID,
		EmployeeID:        m.EmployeeID,
		Status:            domain.AssignmentStatus(m.Status),
		StartTime:         m.StartTime,
		EndTime:           m.EndTime,
		SolutionPhotoURLs: urls,
	}
}

var _ usecase.AssignmentRepository = (*AssignmentRepository)(nil)
