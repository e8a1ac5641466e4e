package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

func uintPtr(v uint) *uint { return &v }

func principal(id uint, role model.Role, dept *uint) domain.Principal {
	return domain.Principal{ID: id, Role: role, DepartmentID: dept}
}

func assertForbidden(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden), "expected forbidden, got %v", err)
	appErr, ok := domain.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 403, appErr.Code)
	assert.NotEmpty(t, appErr.Message)
}

func TestGate_Authorize(t *testing.T) {
	g := NewGate()
	ctx := context.Background()

	err := g.Authorize(ctx, domain.Principal{}, ActionRead, ResourceCourse, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))

	err = g.Authorize(ctx, principal(1, model.RoleAdmin, nil), ActionRead, "unknown", nil)
	assert.True(t, errors.Is(err, ErrNoPolicyDefined))

	g = NewDefaultGate(Options{})
	course := &model.Course{ID: 1, DepartmentID: 1}
	assert.True(t, g.Can(ctx, principal(1, model.RoleAdmin, nil), ActionDelete, ResourceCourse, course))
	assert.False(t, g.Can(ctx, principal(2, model.RoleStudent, nil), ActionDelete, ResourceCourse, course))
}

func TestHourEntryPolicy_Read(t *testing.T) {
	hp := &HourEntryPolicy{}
	ctx := context.Background()
	course := &model.Course{ID: 10, DepartmentID: 1, TeacherID: uintPtr(5), Students: []model.User{{ID: 9}}}
	target := HourTarget{Entry: &model.HourEntry{CourseID: 10, TeacherID: 5}, Course: course}

	assert.NoError(t, hp.Can(ctx, principal(1, model.RoleAdmin, nil), ActionRead, target))
	assert.NoError(t, hp.Can(ctx, principal(2, model.RoleHR, nil), ActionRead, target))
	assert.NoError(t, hp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionRead, target))
	assertForbidden(t, hp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(2)), ActionRead, target))
	assertForbidden(t, hp.Can(ctx, principal(3, model.RoleLeadTrainer, nil), ActionRead, target))
	assert.NoError(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionRead, target))
	assertForbidden(t, hp.Can(ctx, principal(6, model.RoleTrainer, nil), ActionRead, target))
	assert.NoError(t, hp.Can(ctx, principal(9, model.RoleStudent, nil), ActionRead, &target))
	assertForbidden(t, hp.Can(ctx, principal(8, model.RoleStudent, nil), ActionRead, target))
}

func TestHourEntryPolicy_TrainerWrite(t *testing.T) {
	hp := &HourEntryPolicy{}
	ctx := context.Background()
	course := &model.Course{ID: 10, DepartmentID: 1, TeacherID: uintPtr(5)}

	own := HourTarget{Entry: &model.HourEntry{TeacherID: 5}, Course: course}
	for _, action := range []Action{ActionCreate, ActionUpdate, ActionDelete} {
		assert.NoError(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), action, own), action)
	}

	// Entry owned by someone else.
	other := HourTarget{Entry: &model.HourEntry{TeacherID: 6}, Course: course}
	assertForbidden(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionUpdate, other))

	// Owner no longer teaches the course.
	reassigned := HourTarget{Entry: &model.HourEntry{TeacherID: 5}, Course: &model.Course{ID: 10, TeacherID: uintPtr(7)}}
	assertForbidden(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionDelete, reassigned))
}

func TestHourEntryPolicy_PrivilegedAndStudentWrite(t *testing.T) {
	hp := &HourEntryPolicy{}
	ctx := context.Background()
	target := HourTarget{
		Entry:  &model.HourEntry{TeacherID: 5},
		Course: &model.Course{DepartmentID: 3, TeacherID: uintPtr(5), Students: []model.User{{ID: 9}}},
	}

	assert.NoError(t, hp.Can(ctx, principal(1, model.RoleAdmin, nil), ActionDelete, target))
	assert.NoError(t, hp.Can(ctx, principal(2, model.RoleHR, nil), ActionUpdate, target))
	assert.NoError(t, hp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionUpdate, target))
	assertForbidden(t, hp.Can(ctx, principal(9, model.RoleStudent, nil), ActionCreate, target))
}

func TestHourEntryPolicy_EditWindow(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := created.Add(25 * time.Hour)
	hp := &HourEntryPolicy{Options: Options{TrainerEditWindow: 24 * time.Hour, Now: func() time.Time { return now }}}
	ctx := context.Background()
	target := HourTarget{
		Entry:  &model.HourEntry{TeacherID: 5, CreatedAt: created},
		Course: &model.Course{TeacherID: uintPtr(5)},
	}

	assertForbidden(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionUpdate, target))
	assertForbidden(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionDelete, target))
	// Leads are not bound by the window.
	assert.NoError(t, hp.Can(ctx, principal(3, model.RoleLeadTrainer, nil), ActionUpdate, target))

	now = created.Add(2 * time.Hour)
	assert.NoError(t, hp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionUpdate, target))
}

func TestHourEntryPolicy_MissingResource(t *testing.T) {
	hp := &HourEntryPolicy{}
	assertForbidden(t, hp.Can(context.Background(), principal(1, model.RoleAdmin, nil), ActionRead, nil))
}

func TestCoursePolicy_Read(t *testing.T) {
	cp := &CoursePolicy{}
	ctx := context.Background()
	course := &model.Course{DepartmentID: 1, TeacherID: uintPtr(5), Students: []model.User{{ID: 9}}}

	assert.NoError(t, cp.Can(ctx, principal(1, model.RoleAdmin, nil), ActionRead, course))
	assert.NoError(t, cp.Can(ctx, principal(2, model.RoleHR, nil), ActionRead, course))
	assert.NoError(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionRead, course))
	assertForbidden(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(2)), ActionRead, course))
	assert.NoError(t, cp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionRead, course))
	assertForbidden(t, cp.Can(ctx, principal(6, model.RoleTrainer, nil), ActionRead, course))
	assert.NoError(t, cp.Can(ctx, principal(9, model.RoleStudent, nil), ActionRead, course))
	assertForbidden(t, cp.Can(ctx, principal(8, model.RoleStudent, nil), ActionRead, course))
}

func TestCoursePolicy_Write(t *testing.T) {
	cp := &CoursePolicy{}
	ctx := context.Background()
	course := &model.Course{DepartmentID: 1, TeacherID: uintPtr(5)}

	assert.NoError(t, cp.Can(ctx, principal(1, model.RoleAdmin, nil), ActionDelete, course))
	assert.NoError(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionUpdate, course))
	assertForbidden(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(2)), ActionUpdate, course))
	assertForbidden(t, cp.Can(ctx, principal(2, model.RoleHR, nil), ActionCreate, course))
	assertForbidden(t, cp.Can(ctx, principal(5, model.RoleTrainer, nil), ActionUpdate, course))
	assertForbidden(t, cp.Can(ctx, principal(9, model.RoleStudent, nil), ActionDelete, course))
}

func TestCoursePolicy_DepartmentReassignment(t *testing.T) {
	cp := &CoursePolicy{}
	ctx := context.Background()
	course := &model.Course{DepartmentID: 1}

	move := CourseChange{Current: course, NewDepartmentID: uintPtr(2)}
	assertForbidden(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionUpdate, move))
	assert.NoError(t, cp.Can(ctx, principal(1, model.RoleAdmin, nil), ActionUpdate, &move))

	same := CourseChange{Current: course, NewDepartmentID: uintPtr(1)}
	assert.NoError(t, cp.Can(ctx, principal(3, model.RoleLeadTrainer, uintPtr(1)), ActionUpdate, same))
}
