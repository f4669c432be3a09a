package usecase

import (
	"context"

	"github.com/cityflow/cityflow/internal/domain"
)

// Transactor runs fn inside one store transaction. Repositories called
// with the ctx handed to fn join that transaction.
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// FeedQuery selects and orders the public complaint feed.
type FeedQuery struct {
	Sort      domain.FeedSort
	Latitude  *float64
	Longitude *float64
	Limit     int
}

// ComplaintRepository defines persistence for complaints and their photos.
type ComplaintRepository interface {
	Create(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error)
	Get(ctx context.Context, id int64) (domain.Complaint, error)
	// GetForUpdate reads the complaint and locks its row until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (domain.Complaint, error)
	Update(ctx context.Context, complaint domain.Complaint) (domain.Complaint, error)
	Delete(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64) ([]domain.Complaint, error)
	Feed(ctx context.Context, query FeedQuery) ([]domain.Complaint, error)
	AddPhoto(ctx context.Context, complaintID int64, url string) (domain.ComplaintPhoto, error)
	AdjustSupportCount(ctx context.Context, id int64, delta int) (int, error)
}

// AssignmentRepository defines persistence for assignments.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error)
	Get(ctx context.Context, id int64) (domain.Assignment, error)
	GetForUpdate(ctx context.Context, id int64) (domain.Assignment, error)
	Update(ctx context.Context, assignment domain.Assignment) (domain.Assignment, error)
	FindActiveByComplaint(ctx context.Context, complaintID int64) (*domain.Assignment, error)
	ListByEmployee(ctx context.Context, employeeID int64, statuses []domain.AssignmentStatus) ([]domain.Assignment, error)
}

// CategoryRepository defines persistence for categories.
type CategoryRepository interface {
	Create(ctx context.Context, category domain.Category) (domain.Category, error)
	Get(ctx context.Context, id int64) (domain.Category, error)
	GetByName(ctx context.Context, name string) (domain.Category, error)
	Update(ctx context.Context, category domain.Category) (domain.Category, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, activeOnly bool) ([]domain.Category, error)
}

// UserRepository is the read-only view of the identity subsystem.
type UserRepository interface {
	Get(ctx context.Context, id int64) (domain.User, error)
}

// SupportRepository defines persistence for support entries.
type SupportRepository interface {
	Exists(ctx context.Context, complaintID, userID int64) (bool, error)
	Create(ctx context.Context, complaintID, userID int64) error
	Delete(ctx context.Context, complaintID, userID int64) error
	List(ctx context.Context, complaintID int64) ([]domain.Support, error)
}

// RatingRepository defines persistence for ratings.
type RatingRepository interface {
	Create(ctx context.Context, rating domain.Rating) (domain.Rating, error)
	List(ctx context.Context, complaintID int64) ([]domain.Rating, error)
}

// AuditRepository stores audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log domain.AuditLog) error
}

// Classifier maps complaint text to a category label.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// PhotoStorage stores uploaded bytes and returns a public URL.
type PhotoStorage interface {
	Save(ctx context.Context, prefix, filename string, data []byte) (string, error)
	// Delete removes an object returned by Save.
	Delete(ctx context.Context, url string) error
}

// Notifier sends messages without reporting delivery back.
type Notifier interface {
	Notify(ctx context.Context, notification domain.Notification)
}

// EventPublisher fans committed changes out to realtime listeners.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Authorizer is the role gate consulted before every operation.
type Authorizer interface {
	Authorize(actor domain.Actor, action string, this map[string]any, params map[string]any) error
}
