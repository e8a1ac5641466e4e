package model

import "time"

// HourEntry is a dated declaration of teaching hours against a course.
type HourEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	Course      *Course   `json:"course,omitempty"`
	TeacherID   uint      `gorm:"index;not null" json:"teacherId"`
	Teacher     *User     `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
	Date        time.Time `gorm:"index;not null" json:"date"`
	Hours       float64   `gorm:"not null" json:"hours"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
