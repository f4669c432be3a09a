package domain

import (
	"fmt"
	"time"
)

// Role is the symbolic role of a user.
type Role string

const (
	RoleCitizen  Role = "citizen"
	RoleOfficial Role = "official"
	RoleEmployee Role = "employee"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCitizen, RoleOfficial, RoleEmployee, RoleAdmin:
		return r, nil
	default:
		return "", Validationf("unknown role: %s", s)
	}
}

type User struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             Role      `json:"role"`
	ProfileCompleted bool      `json:"profileCompleted"`
	IsActive         bool      `json:"isActive"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Actor is the already-authenticated caller of a core operation.
type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) String() string {
	return fmt.Sprintf("%s#%d", a.Role, a.ID)
}

// IsStaff reports whether the actor may manage complaints of others.
func (a Actor) IsStaff() bool {
	return a.Role == RoleOfficial || a.Role == RoleAdmin
}
