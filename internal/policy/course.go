package policy

import (
	"context"

	"gorm.io/gorm"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

// CourseChange is the resource for an update: the stored course and the
// department it would move to, if any.
type CourseChange struct {
	Current         *model.Course
	NewDepartmentID *uint
}

// CoursePolicy governs course reads and writes.
//
// Reads: admin and hr see every course, a lead trainer the courses of their
// department, a trainer the courses they teach and a student the courses they
// are enrolled in. Writes (including enrollment) belong to admins and to the
// lead trainer of the course's department. Only admins may move a course to
// another department.
type CoursePolicy struct {
	Options Options
}

var _ Policy = (*CoursePolicy)(nil)

func (cp *CoursePolicy) Can(_ context.Context, p domain.Principal, action Action, resource any) error {
	var (
		course *model.Course
		change *CourseChange
	)
	switch r := resource.(type) {
	case *model.Course:
		course = r
	case *CourseChange:
		change = r
		course = r.Current
	case CourseChange:
		change = &r
		course = r.Current
	}
	if course == nil {
		return deny("no course given")
	}

	switch action {
	case ActionRead, ActionList:
		return cp.canRead(p, course)
	case ActionCreate, ActionUpdate, ActionDelete:
		if err := cp.canWrite(p, course); err != nil {
			return err
		}
		if change != nil && change.NewDepartmentID != nil && *change.NewDepartmentID != course.DepartmentID && p.Role != model.RoleAdmin {
			return deny("only an admin can move a course to another department")
		}
		return nil
	}
	return deny("unknown action %q", action)
}

func (cp *CoursePolicy) canRead(p domain.Principal, c *model.Course) error {
	switch p.Role {
	case model.RoleAdmin, model.RoleHR:
		return nil
	case model.RoleLeadTrainer:
		if p.InDepartment(c.DepartmentID) {
			return nil
		}
		return deny("course belongs to another department")
	case model.RoleTrainer:
		if c.TaughtBy(p.ID) {
			return nil
		}
		return deny("you do not teach this course")
	case model.RoleStudent:
		if c.HasStudent(p.ID) {
			return nil
		}
		return deny("you are not enrolled in this course")
	}
	return deny("role %q cannot read courses", p.Role)
}

func (cp *CoursePolicy) canWrite(p domain.Principal, c *model.Course) error {
	switch p.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleLeadTrainer:
		if p.InDepartment(c.DepartmentID) {
			return nil
		}
		return deny("lead trainers can only manage courses of their own department")
	}
	return deny("role %q cannot manage courses", p.Role)
}

// Scope narrows a course query to the rows p may read.
func (cp *CoursePolicy) Scope(p domain.Principal) func(*gorm.DB) *gorm.DB {
	switch p.Role {
	case model.RoleAdmin, model.RoleHR:
		return all
	case model.RoleLeadTrainer:
		if p.DepartmentID == nil {
			return none
		}
		dept := *p.DepartmentID
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("department_id = ?", dept)
		}
	case model.RoleTrainer:
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("teacher_id = ?", p.ID)
		}
	case model.RoleStudent:
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("id IN (?)", courseIDsForStudent(tx, p.ID))
		}
	}
	return none
}
