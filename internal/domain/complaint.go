package domain

import (
	"time"
)

// ComplaintStatus is the lifecycle state of a complaint.
type ComplaintStatus string

const (
	ComplaintPending    ComplaintStatus = "pending"
	ComplaintAssigned   ComplaintStatus = "assigned"
	ComplaintInProgress ComplaintStatus = "in_progress"
	ComplaintResolved   ComplaintStatus = "resolved"
	ComplaintRejected   ComplaintStatus = "rejected"
)

// complaintTransitions lists the edges reachable through the direct
// status entry points. Assignment driven states are not in here.
var complaintTransitions = map[ComplaintStatus][]ComplaintStatus{
	ComplaintPending:    {ComplaintInProgress},
	ComplaintInProgress: {ComplaintResolved},
	ComplaintResolved:   {},
}

func ParseComplaintStatus(s string) (ComplaintStatus, error) {
	switch st := ComplaintStatus(s); st {
	case ComplaintPending, ComplaintAssigned, ComplaintInProgress, ComplaintResolved, ComplaintRejected:
		return st, nil
	default:
		return "", Validationf("geçersiz durum: %s", s)
	}
}

// IsTerminal reports whether no further transition can leave the status.
func (s ComplaintStatus) IsTerminal() bool {
	return s == ComplaintResolved || s == ComplaintRejected
}

// CheckTransition validates a direct status change. A self transition is
// always accepted.
func (s ComplaintStatus) CheckTransition(to ComplaintStatus) error {
	if s == to {
		return nil
	}
	for _, next := range complaintTransitions[s] {
		if next == to {
			return nil
		}
	}
	return Validationf("%s durumundan %s durumuna geçilemez", s, to)
}

// Priority is the urgency of a complaint.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func ParsePriority(s string) (Priority, error) {
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	default:
		return "", Validationf("geçersiz öncelik: %s", s)
	}
}

type Complaint struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"userId"`
	Title        *string          `json:"title,omitempty"`
	Description  string           `json:"description"`
	CategoryID   *int64           `json:"categoryId,omitempty"`
	Status       ComplaintStatus  `json:"status"`
	Priority     Priority         `json:"priority"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	PhotoURL     *string          `json:"photoUrl,omitempty"`
	Photos       []ComplaintPhoto `json:"photos"`
	IsAnonymous  bool             `json:"isAnonymous"`
	SupportCount int              `json:"supportCount"`
	RejectReason *string          `json:"rejectReason,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// Redacted hides the reporter of an anonymous complaint from anyone but
// the reporter and staff.
func (c Complaint) Redacted(viewer Actor) Complaint {
	if !c.IsAnonymous || viewer.ID == c.UserID || viewer.IsStaff() {
		return c
	}
	c.UserID = 0
	return c
}

type ComplaintPhoto struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaintId"`
	PhotoURL    string    `json:"photoUrl"`
	CreatedAt   time.Time `json:"createdAt"`
}

// FeedSort selects the ordering of the public complaint feed.
type FeedSort string

const (
	FeedNewest  FeedSort = "newest"
	FeedPopular FeedSort = "popular"
	FeedNearby  FeedSort = "nearby"
)

func ParseFeedSort(s string) (FeedSort, error) {
	switch f := FeedSort(s); f {
	case "":
		return FeedNewest, nil
	case FeedNewest, FeedPopular, FeedNearby:
		return f, nil
	default:
		return "", Validationf("unknown sort: %s", s)
	}
}
