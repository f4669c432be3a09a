package models

import (
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID               int64     `gorm:"primaryKey;autoIncrement"`
	Name             string    `gorm:"type:text;not null"`
	Email            string    `gorm:"type:text;uniqueIndex;not null"`
	PasswordHash     string    `gorm:"type:text"`
	Role             string    `gorm:"type:text;not null;default:'citizen'"`
	ProfileCompleted bool      `gorm:"not null;default:false"`
	IsActive         bool      `gorm:"not null;default:true"`
	CreatedAt        time.Time `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Category struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Name        string  `gorm:"type:text;uniqueIndex;not null"`
	Description *string `gorm:"type:text"`
	IsActive    bool    `gorm:"not null;default:true"`
}

type Complaint struct {
	ID           int64            `gorm:"primaryKey;autoIncrement"`
	UserID       int64            `gorm:"index;not null"`
	User         User             `gorm:"constraint:OnDelete:CASCADE;"`
	Title        *string          `gorm:"type:text"`
	Description  string           `gorm:"type:text;not null"`
	CategoryID   *int64           `gorm:"index"`
	Category     *Category        `gorm:"constraint:OnDelete:SET NULL;"`
	Status       string           `gorm:"type:text;index;not null;default:'pending'"`
	Priority     string           `gorm:"type:text;not null;default:'medium'"`
	Latitude     *float64         `gorm:"type:double precision"`
	Longitude    *float64         `gorm:"type:double precision"`
	PhotoURL     *string          `gorm:"type:text"`
	Photos       []ComplaintPhoto `gorm:"constraint:OnDelete:CASCADE;"`
	IsAnonymous  bool             `gorm:"not null;default:false"`
	SupportCount int              `gorm:"not null;default:0;check:support_count >= 0"`
	RejectReason *string          `gorm:"type:text"`
	CreatedAt    time.Time        `gorm:"type:timestamp with time zone;index;not null;default:clock_timestamp()"`
	UpdatedAt    time.Time        `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type ComplaintPhoto struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ComplaintID int64     `gorm:"index;not null"`
	PhotoURL    string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type Assignment struct {
	ID                int64          `gorm:"primaryKey;autoIncrement"`
	ComplaintID       int64          `gorm:"index;not null"`
	Complaint         Complaint      `gorm:"constraint:OnDelete:CASCADE;"`
	EmployeeID        int64          `gorm:"index;not null"`
	Employee          User           `gorm:"constraint:OnDelete:CASCADE;"`
	Status            string         `gorm:"type:text;index;not null;default:'assigned'"`
	StartTime         *time.Time     `gorm:"type:timestamp with time zone"`
	EndTime           *time.Time     `gorm:"type:timestamp with time zone"`
	SolutionPhotoURLs pq.StringArray `gorm:"type:text[];not null;default:'{}'"`
}

type ComplaintSupport struct {
	ComplaintID int64     `gorm:"primaryKey"`
	Complaint   Complaint `gorm:"constraint:OnDelete:CASCADE;"`
	UserID      int64     `gorm:"primaryKey;index"`
	User        User      `gorm:"constraint:OnDelete:CASCADE;"`
	CreatedAt   time.Time `gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type ComplaintRating struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ComplaintID int64     `gorm:"index;not null"`
	Complaint   Complaint `gorm:"constraint:OnDelete:CASCADE;"`
	UserID      int64     `gorm:"index;not null"`
	Rating      int       `gorm:"not null;check:rating BETWEEN 1 AND 5"`
	Comment     *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

type AuditLog struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	ActorUserID *int64    `gorm:"index"`
	Action      string    `gorm:"type:text;index;not null"`
	TargetType  *string   `gorm:"type:text"`
	TargetID    *int64    `gorm:"index"`
	Detail      *string   `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"type:timestamp with time zone;not null;default:clock_timestamp()"`
}
