package domain

import (
	"time"
)

type Support struct {
	ComplaintID int64     `json:"complaintId"`
	UserID      int64     `json:"userId"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SupportAction is the outcome of a support toggle.
type SupportAction string

const (
	SupportAdded   SupportAction = "added"
	SupportRemoved SupportAction = "removed"
)

type SupportResult struct {
	Action       SupportAction `json:"action"`
	SupportCount int           `json:"supportCount"`
}

type Rating struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaintId"`
	UserID      int64     `json:"userId"`
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

const (
	MinRating = 1
	MaxRating = 5
)
