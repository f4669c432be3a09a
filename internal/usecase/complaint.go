package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/policy"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 100

	minRejectReason = 3
	maxRejectReason = 300

	fallbackCategory = "Diğer"
)

// CreateComplaintInput is the citizen supplied part of a new complaint.
type CreateComplaintInput struct {
	Title       *string  `json:"title"`
	Description string   `json:"description"`
	CategoryID  *int64   `json:"categoryId"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	PhotoURL    *string  `json:"photoUrl"`
	IsAnonymous bool     `json:"isAnonymous"`
}

// UpdateComplaintInput carries the administrative fields. Nil means unchanged.
type UpdateComplaintInput struct {
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	CategoryID *int64  `json:"categoryId"`
}

type ComplaintUsecase struct {
	tx          Transactor
	complaints  ComplaintRepository
	assignments AssignmentRepository
	categories  CategoryRepository
	users       UserRepository
	classifier  Classifier
	photos      PhotoStorage
	gate        Authorizer
	effects     *Effects
	now         func() time.Time
}

func NewComplaintUsecase(
	tx Transactor,
	complaints ComplaintRepository,
	assignments AssignmentRepository,
	categories CategoryRepository,
	users UserRepository,
	classifier Classifier,
	photos PhotoStorage,
	gate Authorizer,
	effects *Effects,
) *ComplaintUsecase {
	return &ComplaintUsecase{
		tx:          tx,
		complaints:  complaints,
		assignments: assignments,
		categories:  categories,
		users:       users,
		classifier:  classifier,
		photos:      photos,
		gate:        gate,
		effects:     effects,
		now:         time.Now,
	}
}

func (uc *ComplaintUsecase) Create(ctx context.Context, actor domain.Actor, input CreateComplaintInput) (domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.Create")
	defer span.End()

	user, err := uc.users.Get(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Complaint{}, domain.AuthorizationError{Message: "user not found"}
		}
		span.RecordError(err)
		return domain.Complaint{}, err
	}

	err = uc.gate.Authorize(actor, policy.ActionComplaintCreate, nil, map[string]any{
		"profileCompleted": user.ProfileCompleted,
	})
	if err != nil {
		return domain.Complaint{}, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return domain.Complaint{}, domain.ValidationError{Message: "açıklama boş olamaz"}
	}
	if err := validateLocation(input.Latitude, input.Longitude); err != nil {
		return domain.Complaint{}, err
	}

	var categoryID int64
	if input.CategoryID != nil {
		category, err := uc.categories.Get(ctx, *input.CategoryID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Complaint{}, domain.ValidationError{Message: "kategori bulunamadı"}
			}
			span.RecordError(err)
			return domain.Complaint{}, err
		}
		if !category.IsActive {
			return domain.Complaint{}, domain.ValidationError{Message: "kategori aktif değil"}
		}
		categoryID = category.ID
	} else {
		category, err := uc.classify(ctx, description)
		if err != nil {
			span.RecordError(err)
			return domain.Complaint{}, err
		}
		categoryID = category.ID
	}

	now := uc.now()
	complaint := domain.Complaint{
		UserID:       actor.ID,
		Title:        trimmedOrNil(input.Title),
		Description:  description,
		CategoryID:   &categoryID,
		Status:       domain.ComplaintPending,
		Priority:     domain.PriorityMedium,
		Latitude:     input.Latitude,
		Longitude:    input.Longitude,
		PhotoURL:     trimmedOrNil(input.PhotoURL),
		IsAnonymous:  input.IsAnonymous,
		SupportCount: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := uc.complaints.Create(ctx, complaint)
	if err != nil {
		span.RecordError(err)
		return domain.Complaint{}, err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionCreateComplaint, domain.AuditTargetComplaint, created.ID, ""))
	uc.effects.Publish(ctx, domain.Event{
		Type:        domain.EventComplaintCreated,
		ComplaintID: created.ID,
		Status:      string(created.Status),
	})

	return created, nil
}

// classify resolves the classifier label to a category, creating it on
// first sighting. Labels match case-sensitively.
func (uc *ComplaintUsecase) classify(ctx context.Context, text string) (domain.Category, error) {
	label, err := uc.classifier.Classify(ctx, text)
	if err != nil {
		return domain.Category{}, errors.Wrap(err, "classify")
	}
	label = strings.TrimSpace(label)
	if label == "" {
		label = fallbackCategory
	}

	category, err := uc.categories.GetByName(ctx, label)
	if err == nil {
		return category, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Category{}, err
	}

	description := label + " sorunları"
	category, err = uc.categories.Create(ctx, domain.Category{
		Name:        label,
		Description: &description,
		IsActive:    true,
	})
	if errors.Is(err, domain.ErrConflict) {
		// created concurrently
		return uc.categories.GetByName(ctx, label)
	}
	return category, err
}

func (uc *ComplaintUsecase) UpdateFields(ctx context.Context, actor domain.Actor, id int64, input UpdateComplaintInput) (domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.UpdateFields")
	defer span.End()

	updated, change, err := uc.update(ctx, actor, id, input)
	if err != nil {
		span.RecordError(err)
		return domain.Complaint{}, err
	}

	if change.modified {
		uc.afterUpdate(ctx, actor, updated, change.statusChanged, domain.AuditActionUpdateComplaint)
	}
	return updated, nil
}

func (uc *ComplaintUsecase) ChangeStatus(ctx context.Context, actor domain.Actor, id int64, status string) (domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.ChangeStatus")
	defer span.End()

	updated, change, err := uc.update(ctx, actor, id, UpdateComplaintInput{Status: &status})
	if err != nil {
		span.RecordError(err)
		return domain.Complaint{}, err
	}

	if change.modified {
		uc.afterUpdate(ctx, actor, updated, change.statusChanged, domain.AuditActionChangeStatus)
	}
	return updated, nil
}

type complaintChange struct {
	modified      bool
	statusChanged bool
}

// update applies input under the complaint row lock. A request that
// leaves every field as it is writes nothing.
func (uc *ComplaintUsecase) update(ctx context.Context, actor domain.Actor, id int64, input UpdateComplaintInput) (domain.Complaint, complaintChange, error) {
	if err := uc.gate.Authorize(actor, policy.ActionComplaintUpdate, nil, nil); err != nil {
		return domain.Complaint{}, complaintChange{}, err
	}

	var status *domain.ComplaintStatus
	if input.Status != nil {
		parsed, err := domain.ParseComplaintStatus(*input.Status)
		if err != nil {
			return domain.Complaint{}, complaintChange{}, err
		}
		status = &parsed
	}

	var priority *domain.Priority
	if input.Priority != nil {
		parsed, err := domain.ParsePriority(*input.Priority)
		if err != nil {
			return domain.Complaint{}, complaintChange{}, err
		}
		priority = &parsed
	}

	var result domain.Complaint
	var change complaintChange
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		complaint, err := uc.complaints.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}

		if status != nil {
			if err := complaint.Status.CheckTransition(*status); err != nil {
				return err
			}
			if complaint.Status != *status {
				change.statusChanged = true
				complaint.Status = *status
			}
		}

		modified := change.statusChanged
		if priority != nil && complaint.Priority != *priority {
			complaint.Priority = *priority
			modified = true
		}

		if input.CategoryID != nil && (complaint.CategoryID == nil || *complaint.CategoryID != *input.CategoryID) {
			if _, err := uc.categories.Get(ctx, *input.CategoryID); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					return domain.ValidationError{Message: "kategori bulunamadı"}
				}
				return err
			}
			categoryID := *input.CategoryID
			complaint.CategoryID = &categoryID
			modified = true
		}

		if !modified {
			result = complaint
			return nil
		}
		change.modified = true
		complaint.UpdatedAt = uc.now()
		result, err = uc.complaints.Update(ctx, complaint)
		return err
	})
	if err != nil {
		return domain.Complaint{}, complaintChange{}, err
	}

	return result, change, nil
}

func (uc *ComplaintUsecase) afterUpdate(ctx context.Context, actor domain.Actor, c domain.Complaint, statusChanged bool, action string) {
	uc.effects.Audit(ctx, domain.NewAuditLog(actor, action, domain.AuditTargetComplaint, c.ID, string(c.Status)))
	uc.effects.Publish(ctx, domain.Event{
		Type:        domain.EventComplaintUpdated,
		ComplaintID: c.ID,
		Status:      string(c.Status),
	})
	if statusChanged {
		subject, body := statusChangedMail(c)
		uc.effects.NotifyUser(ctx, c.UserID, subject, body)
	}
}

// Reject closes a complaint from any non-terminal state and records why.
// An active assignment on the complaint is completed in the same
// transaction so no field work stays open on a rejected complaint.
func (uc *ComplaintUsecase) Reject(ctx context.Context, actor domain.Actor, id int64, reason string) (domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.Reject")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionComplaintReject, nil, nil); err != nil {
		return domain.Complaint{}, err
	}

	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < minRejectReason || n > maxRejectReason {
		return domain.Complaint{}, domain.Validationf("red nedeni %d ile %d karakter arasında olmalıdır", minRejectReason, maxRejectReason)
	}

	var result domain.Complaint
	var closed *domain.Assignment
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		complaint, err := uc.complaints.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if complaint.Status.IsTerminal() {
			return domain.Validationf("%s durumundan %s durumuna geçilemez", complaint.Status, domain.ComplaintRejected)
		}

		now := uc.now()
		complaint.Status = domain.ComplaintRejected
		complaint.RejectReason = &reason
		complaint.UpdatedAt = now
		result, err = uc.complaints.Update(ctx, complaint)
		if err != nil {
			return err
		}

		active, err := uc.assignments.FindActiveByComplaint(ctx, id)
		if err != nil || active == nil {
			return err
		}
		assignment, err := uc.assignments.GetForUpdate(ctx, active.ID)
		if err != nil {
			return err
		}
		assignment.Apply(domain.AssignmentCompleted, now)
		updated, err := uc.assignments.Update(ctx, assignment)
		if err != nil {
			return err
		}
		closed = &updated
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Complaint{}, err
	}

	uc.afterUpdate(ctx, actor, result, true, domain.AuditActionRejectComplaint)
	if closed != nil {
		uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionChangeAssignment, domain.AuditTargetAssignment, closed.ID, string(closed.Status)))
		uc.effects.Publish(ctx, assignmentEvent(*closed))
	}
	return result, nil
}

func (uc *ComplaintUsecase) Get(ctx context.Context, actor domain.Actor, id int64) (domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.Get")
	defer span.End()

	complaint, err := uc.complaints.Get(ctx, id)
	if err != nil {
		return domain.Complaint{}, err
	}
	return complaint.Redacted(actor), nil
}

func (uc *ComplaintUsecase) ListMine(ctx context.Context, actor domain.Actor) ([]domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.ListMine")
	defer span.End()

	return uc.complaints.ListByUser(ctx, actor.ID)
}

// Feed lists complaints newest first, by support count, or by distance
// to the given point. nearby without a point falls back to newest.
func (uc *ComplaintUsecase) Feed(ctx context.Context, actor domain.Actor, query FeedQuery) ([]domain.Complaint, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.Feed")
	defer span.End()

	if query.Sort == "" {
		query.Sort = domain.FeedNewest
	}
	if query.Sort == domain.FeedNearby {
		if query.Latitude == nil || query.Longitude == nil {
			query.Sort = domain.FeedNewest
		} else if err := validateLocation(query.Latitude, query.Longitude); err != nil {
			return nil, err
		}
	}
	if query.Limit <= 0 {
		query.Limit = defaultFeedLimit
	}
	if query.Limit > maxFeedLimit {
		query.Limit = maxFeedLimit
	}

	complaints, err := uc.complaints.Feed(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	for i := range complaints {
		complaints[i] = complaints[i].Redacted(actor)
	}
	return complaints, nil
}

// AddPhoto stores an uploaded image and appends it to the complaint.
func (uc *ComplaintUsecase) AddPhoto(ctx context.Context, actor domain.Actor, id int64, filename string, data []byte) (domain.ComplaintPhoto, error) {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.AddPhoto")
	defer span.End()

	complaint, err := uc.complaints.Get(ctx, id)
	if err != nil {
		return domain.ComplaintPhoto{}, err
	}

	err = uc.gate.Authorize(actor, policy.ActionComplaintAddPhoto, map[string]any{"userId": complaint.UserID}, nil)
	if err != nil {
		return domain.ComplaintPhoto{}, err
	}

	if len(data) == 0 {
		return domain.ComplaintPhoto{}, domain.ValidationError{Message: "boş dosya"}
	}

	url, err := uc.photos.Save(ctx, "complaints", filename, data)
	if err != nil {
		span.RecordError(err)
		return domain.ComplaintPhoto{}, errors.Wrap(err, "store photo")
	}

	photo, err := uc.complaints.AddPhoto(ctx, id, url)
	if err != nil {
		span.RecordError(err)
		if derr := uc.photos.Delete(ctx, url); derr != nil {
			slog.WarnContext(
				ctx, "failed to remove orphaned photo",
				slog.String("url", url),
				slog.String("error", derr.Error()),
				slog.String("module", "complaint"),
			)
		}
		return domain.ComplaintPhoto{}, err
	}

	uc.effects.Publish(ctx, domain.Event{
		Type:        domain.EventPhotoAdded,
		ComplaintID: id,
	})
	return photo, nil
}

// Delete removes a complaint with its photos. Only the reporter or an admin may.
func (uc *ComplaintUsecase) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	ctx, span := tracer.Start(ctx, "Complaint.Usecase.Delete")
	defer span.End()

	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		complaint, err := uc.complaints.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		err = uc.gate.Authorize(actor, policy.ActionComplaintDelete, map[string]any{"userId": complaint.UserID}, nil)
		if err != nil {
			return err
		}
		return uc.complaints.Delete(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionDeleteComplaint, domain.AuditTargetComplaint, id, ""))
	uc.effects.Publish(ctx, domain.Event{
		Type:        domain.EventComplaintDeleted,
		ComplaintID: id,
	})
	return nil
}

func validateLocation(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return domain.ValidationError{Message: "enlem ve boylam birlikte verilmelidir"}
	}
	if lat == nil {
		return nil
	}
	if *lat < -90 || *lat > 90 {
		return domain.ValidationError{Message: "geçersiz enlem"}
	}
	if *lon < -180 || *lon > 180 {
		return domain.ValidationError{Message: "geçersiz boylam"}
	}
	return nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
