package policy

import (
	"time"

	"gorm.io/gorm"
)

// Options carries the configurable parts of the rules.
type Options struct {
	// TrainerEditWindow bounds how long after creation a trainer may change
	// or delete their own hour entry. Zero means no bound.
	TrainerEditWindow time.Duration
	// EnforceTeacherDepartment requires a course's teacher to be a member of
	// the course's department.
	EnforceTeacherDepartment bool
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// none matches no rows.
func none(tx *gorm.DB) *gorm.DB {
	return tx.Where("1 = 0")
}

func all(tx *gorm.DB) *gorm.DB {
	return tx
}

// courseIDsInDepartment is a subquery selecting the ids of a department's courses.
func courseIDsInDepartment(tx *gorm.DB, departmentID uint) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Table(tx.NamingStrategy.TableName("Course")).
		Select("id").
		Where("department_id = ?", departmentID)
}

// courseIDsForStudent is a subquery selecting the courses a student is enrolled in.
func courseIDsForStudent(tx *gorm.DB, studentID uint) *gorm.DB {
	return tx.Session(&gorm.Session{NewDB: true}).
		Table(tx.NamingStrategy.JoinTableName("course_students")).
		Select("course_id").
		Where("user_id = ?", studentID)
}
