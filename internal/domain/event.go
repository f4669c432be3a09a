package domain

import (
	"fmt"
	"time"
)

const (
	EventComplaintCreated  = "complaint.created"
	EventComplaintUpdated  = "complaint.updated"
	EventComplaintDeleted  = "complaint.deleted"
	EventAssignmentChanged = "assignment.changed"
	EventSupportChanged    = "support.changed"
	EventRatingAdded       = "rating.added"
	EventPhotoAdded        = "photo.added"
)

// Event is the realtime notice published after a committed change.
// Anyone may subscribe to a complaint channel, so events carry ids,
// statuses and counters only. Clients refetch the resource for details.
type Event struct {
	Type         string    `json:"type"`
	ComplaintID  int64     `json:"complaintId"`
	AssignmentID int64     `json:"assignmentId,omitempty"`
	Status       string    `json:"status,omitempty"`
	SupportCount *int      `json:"supportCount,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Channel is the pub/sub channel the event is published on.
func (e Event) Channel() string {
	return ComplaintChannel(e.ComplaintID)
}

func ComplaintChannel(complaintID int64) string {
	return fmt.Sprintf("complaint:%d", complaintID)
}

// Notification is an outbound message to a user.
type Notification struct {
	To      string
	Subject string
	Body    string
}
