package model

import "time"

// Course belongs to one department, is taught by at most one teacher and has
// a set of enrolled students.
type Course struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Title        string      `gorm:"not null" json:"title"`
	Code         string      `gorm:"uniqueIndex;not null" json:"code"`
	Description  string      `json:"description"`
	DepartmentID uint        `gorm:"index;not null" json:"departmentId"`
	Department   *Department `json:"department,omitempty"`
	TeacherID    *uint       `gorm:"index" json:"teacherId"`
	Teacher      *User       `gorm:"foreignKey:TeacherID" json:"teacher,omitempty"`
	Students     []User      `gorm:"many2many:course_students;" json:"students,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// TaughtBy reports whether userID is the course's current teacher.
func (c *Course) TaughtBy(userID uint) bool {
	return c.TeacherID != nil && *c.TeacherID == userID
}

// HasStudent reports whether userID is in the loaded Students set.
func (c *Course) HasStudent(userID uint) bool {
	for _, s := range c.Students {
		if s.ID == userID {
			return true
		}
	}
	return false
}
