package model

import "time"

// Role is the single role a user holds.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleHR          Role = "hr"
	RoleLeadTrainer Role = "lead_trainer"
	RoleTrainer     Role = "trainer"
	RoleStudent     Role = "student"
)

// Roles lists every role, in order of decreasing privilege.
var Roles = []Role{RoleAdmin, RoleHR, RoleLeadTrainer, RoleTrainer, RoleStudent}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User represents an account of any role.
type User struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"not null" json:"name"`
	Email        string      `gorm:"uniqueIndex;not null" json:"email"`
	Password     string      `gorm:"not null" json:"-"` // bcrypt hash
	Role         Role        `gorm:"type:varchar(32);index;not null" json:"role"`
	DepartmentID *uint       `gorm:"index" json:"departmentId"`
	Department   *Department `json:"department,omitempty"`
	IsActive     bool        `gorm:"not null" json:"isActive"`

	// Password reset state, cleared once consumed.
	ResetCodeHash   *string    `json:"-"`
	ResetCodeExpiry *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
