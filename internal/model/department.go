package model

import "time"

type Department struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"uniqueIndex;not null" json:"name"`
	Description   string    `json:"description"`
	MainTeacherID *uint     `json:"mainTeacherId"`
	MainTeacher   *User     `gorm:"foreignKey:MainTeacherID" json:"mainTeacher,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
