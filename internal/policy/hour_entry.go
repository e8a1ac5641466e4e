package policy

import (
	"context"

	"gorm.io/gorm"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

// HourTarget is the resource checked by HourEntryPolicy. For a create, Entry
// is the unsaved entry. Course must be the entry's course.
type HourTarget struct {
	Entry  *model.HourEntry
	Course *model.Course
}

// HourEntryPolicy governs hour entries.
//
// Visibility: a trainer sees their own entries, a lead trainer the entries of
// their department's courses, a student the entries of courses they attend,
// admin and hr everything. Trainers may only write entries they own on courses
// they currently teach; lead trainers, admin and hr may write any entry;
// students never write.
type HourEntryPolicy struct {
	Options Options
}

var _ Policy = (*HourEntryPolicy)(nil)

func (hp *HourEntryPolicy) Can(_ context.Context, p domain.Principal, action Action, resource any) error {
	var t HourTarget
	switch r := resource.(type) {
	case HourTarget:
		t = r
	case *HourTarget:
		if r != nil {
			t = *r
		}
	}
	if t.Entry == nil || t.Course == nil {
		return deny("no hour entry given")
	}

	switch action {
	case ActionRead, ActionList:
		return hp.canRead(p, t)
	case ActionCreate, ActionUpdate, ActionDelete:
		return hp.canWrite(p, action, t)
	}
	return deny("unknown action %q", action)
}

func (hp *HourEntryPolicy) canRead(p domain.Principal, t HourTarget) error {
	switch p.Role {
	case model.RoleAdmin, model.RoleHR:
		return nil
	case model.RoleLeadTrainer:
		if p.InDepartment(t.Course.DepartmentID) {
			return nil
		}
		return deny("hour entry belongs to another department")
	case model.RoleTrainer:
		if t.Entry.TeacherID == p.ID {
			return nil
		}
		return deny("hour entry belongs to another trainer")
	case model.RoleStudent:
		if t.Course.HasStudent(p.ID) {
			return nil
		}
		return deny("you are not enrolled in this course")
	}
	return deny("role %q cannot read hour entries", p.Role)
}

func (hp *HourEntryPolicy) canWrite(p domain.Principal, action Action, t HourTarget) error {
	switch p.Role {
	case model.RoleAdmin, model.RoleHR, model.RoleLeadTrainer:
		return nil
	case model.RoleTrainer:
		if t.Entry.TeacherID != p.ID {
			return deny("hour entry belongs to another trainer")
		}
		if !t.Course.TaughtBy(p.ID) {
			return deny("you are not the teacher of this course")
		}
		if action != ActionCreate && hp.Options.TrainerEditWindow > 0 &&
			hp.Options.now().Sub(t.Entry.CreatedAt) > hp.Options.TrainerEditWindow {
			return deny("hour entries can only be changed within %s of creation", hp.Options.TrainerEditWindow)
		}
		return nil
	}
	return deny("role %q cannot write hour entries", p.Role)
}

// Scope narrows an hour entry query to the rows p may read.
func (hp *HourEntryPolicy) Scope(p domain.Principal) func(*gorm.DB) *gorm.DB {
	switch p.Role {
	case model.RoleAdmin, model.RoleHR:
		return all
	case model.RoleTrainer:
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("teacher_id = ?", p.ID)
		}
	case model.RoleLeadTrainer:
		if p.DepartmentID == nil {
			return none
		}
		dept := *p.DepartmentID
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("course_id IN (?)", courseIDsInDepartment(tx, dept))
		}
	case model.RoleStudent:
		return func(tx *gorm.DB) *gorm.DB {
			return tx.Where("course_id IN (?)", courseIDsForStudent(tx, p.ID))
		}
	}
	return none
}
