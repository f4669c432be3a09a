package domain

import (
	"time"
)

type AuditLog struct {
	ID          int64     `json:"id"`
	ActorUserID *int64    `json:"actorUserId,omitempty"`
	Action      string    `json:"action"`
	TargetType  *string   `json:"targetType,omitempty"`
	TargetID    *int64    `json:"targetId,omitempty"`
	Detail      *string   `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewAuditLog builds an entry attributed to the actor.
func NewAuditLog(actor Actor, action, targetType string, targetID int64, detail string) AuditLog {
	log := AuditLog{Action: action}
	if actor.ID != 0 {
		id := actor.ID
		log.ActorUserID = &id
	}
	if targetType != "" {
		log.TargetType = &targetType
		log.TargetID = &targetID
	}
	if detail != "" {
		log.Detail = &detail
	}
	return log
}
