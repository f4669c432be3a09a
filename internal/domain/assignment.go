package domain

import (
	"time"
)

// AssignmentStatus is the state of a unit of field work.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "assigned"
	AssignmentInProgress AssignmentStatus = "in_progress"
	AssignmentCompleted  AssignmentStatus = "completed"
)

var assignmentTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentAssigned:   {AssignmentInProgress},
	AssignmentInProgress: {AssignmentCompleted},
	AssignmentCompleted:  {},
}

// ActiveAssignmentStatuses are the statuses covered by the one-active-assignment rule.
var ActiveAssignmentStatuses = []AssignmentStatus{AssignmentAssigned, AssignmentInProgress}

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	switch st := AssignmentStatus(s); st {
	case AssignmentAssigned, AssignmentInProgress, AssignmentCompleted:
		return st, nil
	default:
		return "", Validationf("geçersiz görev durumu: %s", s)
	}
}

func (s AssignmentStatus) IsActive() bool {
	return s == AssignmentAssigned || s == AssignmentInProgress
}

func (s AssignmentStatus) CheckTransition(to AssignmentStatus) error {
	if s == to {
		return nil
	}
	for _, next := range assignmentTransitions[s] {
		if next == to {
			return nil
		}
	}
	return Validationf("%s durumundan %s durumuna geçilemez", s, to)
}

// ComplaintStatusForAssignment returns the complaint status forced by an
// assignment entering the given status. ok is false when the complaint is
// left untouched.
func ComplaintStatusForAssignment(s AssignmentStatus) (status ComplaintStatus, ok bool) {
	switch s {
	case AssignmentAssigned:
		return ComplaintAssigned, true
	case AssignmentInProgress:
		return ComplaintInProgress, true
	case AssignmentCompleted:
		return ComplaintResolved, true
	}
	return "", false
}

type Assignment struct {
	ID                int64            `json:"id"`
	ComplaintID       int64            `json:"complaintId"`
	EmployeeID        int64            `json:"employeeId"`
	Status            AssignmentStatus `json:"status"`
	StartTime         *time.Time       `json:"startTime,omitempty"`
	EndTime           *time.Time       `json:"endTime,omitempty"`
	SolutionPhotoURLs []string         `json:"solutionPhotoUrls"`
}

// Apply moves the assignment to the given status, stamping start and end
// times the first time they are reached.
func (a *Assignment) Apply(to AssignmentStatus, now time.Time) {
	a.Status = to
	switch to {
	case AssignmentInProgress:
		if a.StartTime == nil {
			a.StartTime = &now
		}
	case AssignmentCompleted:
		if a.EndTime == nil {
			a.EndTime = &now
		}
	}
}
