package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/policy"
)

// UploadFile is one uploaded solution photo.
type UploadFile struct {
	Filename string
	Data     []byte
}

type AssignmentUsecase struct {
	tx          Transactor
	assignments AssignmentRepository
	complaints  ComplaintRepository
	users       UserRepository
	photos      PhotoStorage
	gate        Authorizer
	effects     *Effects
	now         func() time.Time
}

func NewAssignmentUsecase(
	tx Transactor,
	assignments AssignmentRepository,
	complaints ComplaintRepository,
	users UserRepository,
	photos PhotoStorage,
	gate Authorizer,
	effects *Effects,
) *AssignmentUsecase {
	return &AssignmentUsecase{
		tx:          tx,
		assignments: assignments,
		complaints:  complaints,
		users:       users,
		photos:      photos,
		gate:        gate,
		effects:     effects,
		now:         time.Now,
	}
}

// AssignEmployee binds a field worker to a complaint. A complaint that
// already has an active assignment is refused with a ConflictError.
func (uc *AssignmentUsecase) AssignEmployee(ctx context.Context, actor domain.Actor, complaintID, employeeID int64) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.AssignEmployee")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionAssignmentAssign, nil, nil); err != nil {
		return domain.Assignment{}, err
	}

	var result domain.Assignment
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		complaint, err := uc.complaints.GetForUpdate(ctx, complaintID)
		if err != nil {
			return err
		}

		employee, err := uc.users.Get(ctx, employeeID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NotFoundError{Resource: "employee"}
			}
			return err
		}
		if employee.Role != domain.RoleEmployee {
			return domain.NotFoundError{Resource: "employee"}
		}

		if complaint.Status.IsTerminal() {
			return domain.Validationf("%s durumundaki şikayete görev atanamaz", complaint.Status)
		}

		active, err := uc.assignments.FindActiveByComplaint(ctx, complaintID)
		if err != nil {
			return err
		}
		if active != nil {
			return domain.ConflictError{Message: "already assigned or in progress"}
		}

		result, err = uc.assignments.Create(ctx, domain.Assignment{
			ComplaintID:       complaintID,
			EmployeeID:        employeeID,
			Status:            domain.AssignmentAssigned,
			SolutionPhotoURLs: []string{},
		})
		if err != nil {
			return err
		}

		return uc.syncComplaint(ctx, complaint, result.Status)
	})
	if err != nil {
		span.RecordError(err)
		return domain.Assignment{}, err
	}

	uc.effects.Audit(ctx, domain.NewAuditLog(actor, domain.AuditActionAssignEmployee, domain.AuditTargetAssignment, result.ID, ""))
	uc.publish(ctx, result)
	subject, body := assignedMail(result)
	uc.effects.NotifyUser(ctx, employeeID, subject, body)

	return result, nil
}

// Start moves an assigned assignment to in_progress.
func (uc *AssignmentUsecase) Start(ctx context.Context, actor domain.Actor, assignmentID int64) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.Start")
	defer span.End()

	result, err := uc.transition(ctx, actor, assignmentID, policy.ActionAssignmentWork, func(a *domain.Assignment) error {
		if a.Status != domain.AssignmentAssigned {
			return domain.Validationf("%s durumundan %s durumuna geçilemez", a.Status, domain.AssignmentInProgress)
		}
		a.Apply(domain.AssignmentInProgress, uc.now())
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Assignment{}, err
	}

	uc.afterTransition(ctx, actor, result, domain.AuditActionStartAssignment)
	return result, nil
}

// Complete finishes an assignment, appending the solution photo urls.
// Completing straight from assigned is accepted.
func (uc *AssignmentUsecase) Complete(ctx context.Context, actor domain.Actor, assignmentID int64, urls []string) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.Complete")
	defer span.End()

	result, err := uc.transition(ctx, actor, assignmentID, policy.ActionAssignmentWork, func(a *domain.Assignment) error {
		if !a.Status.IsActive() {
			return domain.Validationf("%s durumundan %s durumuna geçilemez", a.Status, domain.AssignmentCompleted)
		}
		a.Apply(domain.AssignmentCompleted, uc.now())
		a.SolutionPhotoURLs = append(a.SolutionPhotoURLs, urls...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Assignment{}, err
	}

	uc.afterTransition(ctx, actor, result, domain.AuditActionCompleteWork)
	return result, nil
}

// ChangeStatus is the generic table driven transition used by the
// status endpoint. Staff may drive it as well as the owner.
func (uc *AssignmentUsecase) ChangeStatus(ctx context.Context, actor domain.Actor, assignmentID int64, status string, solutionPhotoURL *string) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.ChangeStatus")
	defer span.End()

	next, err := domain.ParseAssignmentStatus(status)
	if err != nil {
		return domain.Assignment{}, err
	}

	result, err := uc.transition(ctx, actor, assignmentID, policy.ActionAssignmentUpdate, func(a *domain.Assignment) error {
		if err := a.Status.CheckTransition(next); err != nil {
			return err
		}
		a.Apply(next, uc.now())
		if next == domain.AssignmentCompleted && solutionPhotoURL != nil && *solutionPhotoURL != "" {
			a.SolutionPhotoURLs = append(a.SolutionPhotoURLs, *solutionPhotoURL)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return domain.Assignment{}, err
	}

	uc.afterTransition(ctx, actor, result, domain.AuditActionChangeAssignment)
	return result, nil
}

// UploadSolutionPhotos stores the files and completes the assignment with
// their urls. Stored files are removed again when completion fails.
func (uc *AssignmentUsecase) UploadSolutionPhotos(ctx context.Context, actor domain.Actor, assignmentID int64, files []UploadFile) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.UploadSolutionPhotos")
	defer span.End()

	if len(files) == 0 {
		return domain.Assignment{}, domain.ValidationError{Message: "en az bir fotoğraf gereklidir"}
	}

	assignment, err := uc.assignments.Get(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	err = uc.gate.Authorize(actor, policy.ActionAssignmentWork, map[string]any{"employeeId": assignment.EmployeeID}, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	if !assignment.Status.IsActive() {
		return domain.Assignment{}, domain.Validationf("%s durumundan %s durumuna geçilemez", assignment.Status, domain.AssignmentCompleted)
	}
	complaint, err := uc.complaints.Get(ctx, assignment.ComplaintID)
	if err != nil {
		return domain.Assignment{}, err
	}
	if complaint.Status == domain.ComplaintRejected {
		return domain.Assignment{}, domain.ValidationError{Message: "şikayet reddedildi"}
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return domain.Assignment{}, domain.ValidationError{Message: "boş dosya"}
		}
	}

	urls := make([]string, 0, len(files))
	for _, f := range files {
		url, err := uc.photos.Save(ctx, "solutions", f.Filename, f.Data)
		if err != nil {
			span.RecordError(err)
			uc.discardPhotos(ctx, urls)
			return domain.Assignment{}, errors.Wrap(err, "store solution photo")
		}
		urls = append(urls, url)
	}

	result, err := uc.Complete(ctx, actor, assignmentID, urls)
	if err != nil {
		uc.discardPhotos(ctx, urls)
		return domain.Assignment{}, err
	}
	return result, nil
}

func (uc *AssignmentUsecase) discardPhotos(ctx context.Context, urls []string) {
	for _, url := range urls {
		if err := uc.photos.Delete(ctx, url); err != nil {
			slog.WarnContext(
				ctx, "failed to remove orphaned photo",
				slog.String("url", url),
				slog.String("error", err.Error()),
				slog.String("module", "assignment"),
			)
		}
	}
}

// ListForEmployee lists the caller's own assignments, optionally filtered by status.
func (uc *AssignmentUsecase) ListForEmployee(ctx context.Context, actor domain.Actor, statuses []string) ([]domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.ListForEmployee")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionAssignmentList, nil, nil); err != nil {
		return nil, err
	}

	parsed := make([]domain.AssignmentStatus, 0, len(statuses))
	for _, s := range statuses {
		st, err := domain.ParseAssignmentStatus(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, st)
	}

	return uc.assignments.ListByEmployee(ctx, actor.ID, parsed)
}

func (uc *AssignmentUsecase) Get(ctx context.Context, actor domain.Actor, assignmentID int64) (domain.Assignment, error) {
	ctx, span := tracer.Start(ctx, "Assignment.Usecase.Get")
	defer span.End()

	assignment, err := uc.assignments.Get(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}
	err = uc.gate.Authorize(actor, policy.ActionAssignmentRead, map[string]any{"employeeId": assignment.EmployeeID}, nil)
	if err != nil {
		return domain.Assignment{}, err
	}
	return assignment, nil
}

// transition runs fn on the locked assignment and propagates its new
// status to the complaint in the same transaction. Rows are locked
// complaint first, like AssignEmployee.
func (uc *AssignmentUsecase) transition(
	ctx context.Context,
	actor domain.Actor,
	assignmentID int64,
	action string,
	fn func(a *domain.Assignment) error,
) (domain.Assignment, error) {
	current, err := uc.assignments.Get(ctx, assignmentID)
	if err != nil {
		return domain.Assignment{}, err
	}

	var result domain.Assignment
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		complaint, err := uc.complaints.GetForUpdate(ctx, current.ComplaintID)
		if err != nil {
			return err
		}
		assignment, err := uc.assignments.GetForUpdate(ctx, assignmentID)
		if err != nil {
			return err
		}

		err = uc.gate.Authorize(actor, action, map[string]any{"employeeId": assignment.EmployeeID}, nil)
		if err != nil {
			return err
		}

		before := assignment.Status
		if err := fn(&assignment); err != nil {
			return err
		}
		if assignment.Status != before && complaint.Status == domain.ComplaintRejected {
			return domain.ValidationError{Message: "şikayet reddedildi"}
		}

		result, err = uc.assignments.Update(ctx, assignment)
		if err != nil {
			return err
		}
		if assignment.Status == before {
			return nil
		}
		return uc.syncComplaint(ctx, complaint, assignment.Status)
	})
	if err != nil {
		return domain.Assignment{}, err
	}
	return result, nil
}

// syncComplaint forces the complaint status that follows from the
// assignment status. The complaint transition table is not consulted.
func (uc *AssignmentUsecase) syncComplaint(ctx context.Context, complaint domain.Complaint, status domain.AssignmentStatus) error {
	next, ok := domain.ComplaintStatusForAssignment(status)
	if !ok || complaint.Status == next {
		return nil
	}
	complaint.Status = next
	complaint.UpdatedAt = uc.now()
	_, err := uc.complaints.Update(ctx, complaint)
	return err
}

func (uc *AssignmentUsecase) afterTransition(ctx context.Context, actor domain.Actor, a domain.Assignment, action string) {
	uc.effects.Audit(ctx, domain.NewAuditLog(actor, action, domain.AuditTargetAssignment, a.ID, string(a.Status)))
	uc.publish(ctx, a)

	complaint, err := uc.complaints.Get(ctx, a.ComplaintID)
	if err != nil {
		return
	}
	subject, body := statusChangedMail(complaint)
	uc.effects.NotifyUser(ctx, complaint.UserID, subject, body)
}

func (uc *AssignmentUsecase) publish(ctx context.Context, a domain.Assignment) {
	uc.effects.Publish(ctx, assignmentEvent(a))
}

// assignmentEvent carries ids and the status only. Employee identity
// stays out of the public complaint channel.
func assignmentEvent(a domain.Assignment) domain.Event {
	return domain.Event{
		Type:         domain.EventAssignmentChanged,
		ComplaintID:  a.ComplaintID,
		AssignmentID: a.ID,
		Status:       string(a.Status),
	}
}
