package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
	"gestionlearn.com/internal/policy"
)

func TestListCourses_Scoping(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()

	cases := []struct {
		name string
		user model.User
		want []uint
	}{
		{"admin", s.admin, []uint{s.courseA1.ID, s.courseA2.ID, s.courseB1.ID}},
		{"hr", s.hr, []uint{s.courseA1.ID, s.courseA2.ID, s.courseB1.ID}},
		{"lead A", s.leadA, []uint{s.courseA1.ID, s.courseA2.ID}},
		{"lead B", s.leadB, []uint{s.courseB1.ID}},
		{"lead without department", s.leadNoDept, nil},
		{"trainer B", s.trainerB, []uint{s.courseA2.ID}},
		{"student 1", s.student1, []uint{s.courseA1.ID}},
		{"student 2", s.student2, []uint{s.courseB1.ID}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			courses, err := svc.ListCourses(ctx, s.as(tc.user))
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, courseIDs(courses))
		})
	}
}

func TestGetCourse_Relations(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()

	course, err := svc.GetCourse(ctx, s.as(s.student1), s.courseA1.ID)
	require.NoError(t, err)
	require.NotNil(t, course.Department)
	assert.Equal(t, "Informatique", course.Department.Name)
	require.NotNil(t, course.Teacher)
	assert.Equal(t, s.trainerA.ID, course.Teacher.ID)
	require.Len(t, course.Students, 1)
	assert.Equal(t, s.student1.ID, course.Students[0].ID)

	_, err = svc.GetCourse(ctx, s.as(s.student2), s.courseA1.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	_, err = svc.GetCourse(ctx, s.as(s.admin), 9999)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateCourse(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()

	t.Run("lead creates in own department", func(t *testing.T) {
		course, err := svc.CreateCourse(ctx, s.as(s.leadA), domain.CourseInput{
			Title:        strPtr("Docker"),
			Code:         strPtr(" A9 "),
			DepartmentID: &s.deptB.ID,
			TeacherID:    &s.trainerA.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, s.deptA.ID, course.DepartmentID)
		assert.Equal(t, "A9", course.Code)
		assert.Contains(t, s.events.types(), constants.EventCourseCreated)
	})

	t.Run("duplicate code", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, s.as(s.admin), domain.CourseInput{
			Title: strPtr("Go again"), Code: strPtr("A1"), DepartmentID: &s.deptA.ID,
		})
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeConflict, appErr.Reason)
		assert.Equal(t, 400, appErr.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, s.as(s.admin), domain.CourseInput{})
		appErr, ok := domain.AsAppError(err)
		require.True(t, ok)
		assert.Equal(t, domain.CodeValidation, appErr.Reason)
		assert.Len(t, appErr.Fields, 3)
	})

	t.Run("teacher must be a trainer", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, s.as(s.admin), domain.CourseInput{
			Title: strPtr("X"), Code: strPtr("X1"), DepartmentID: &s.deptA.ID, TeacherID: &s.student1.ID,
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("unknown department", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, s.as(s.admin), domain.CourseInput{
			Title: strPtr("X"), Code: strPtr("X2"), DepartmentID: uintPtr(9999),
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("trainer and student cannot create", func(t *testing.T) {
		for _, u := range []model.User{s.trainerA, s.student1} {
			_, err := svc.CreateCourse(ctx, s.as(u), domain.CourseInput{
				Title: strPtr("X"), Code: strPtr("X3"), DepartmentID: &s.deptA.ID,
			})
			assert.True(t, errors.Is(err, domain.ErrForbidden), u.Email)
		}
	})

	t.Run("lead without department", func(t *testing.T) {
		_, err := svc.CreateCourse(ctx, s.as(s.leadNoDept), domain.CourseInput{
			Title: strPtr("X"), Code: strPtr("X4"), DepartmentID: &s.deptA.ID,
		})
		assert.True(t, errors.Is(err, domain.ErrForbidden))
	})
}

func TestCreateCourse_EnforceTeacherDepartment(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{EnforceTeacherDepartment: true})

	_, err := svc.CreateCourse(context.Background(), s.as(s.admin), domain.CourseInput{
		Title: strPtr("X"), Code: strPtr("X1"), DepartmentID: &s.deptA.ID, TeacherID: &s.trainerC.ID,
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	course, err := svc.CreateCourse(context.Background(), s.as(s.admin), domain.CourseInput{
		Title: strPtr("X"), Code: strPtr("X1"), DepartmentID: &s.deptB.ID, TeacherID: &s.trainerC.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, s.deptB.ID, course.DepartmentID)
}

func TestUpdateCourse(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()

	updated, err := svc.UpdateCourse(ctx, s.as(s.leadA), s.courseA1.ID, domain.CourseInput{
		Title:     strPtr("Advanced Go"),
		TeacherID: &s.trainerB.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Advanced Go", updated.Title)
	assert.True(t, updated.TaughtBy(s.trainerB.ID))

	_, err = svc.UpdateCourse(ctx, s.as(s.leadB), s.courseA1.ID, domain.CourseInput{Title: strPtr("Nope")})
	assert.True(t, errors.Is(err, domain.ErrForbidden), "lead of another department")

	_, err = svc.UpdateCourse(ctx, s.as(s.leadA), s.courseA1.ID, domain.CourseInput{DepartmentID: &s.deptB.ID})
	assert.True(t, errors.Is(err, domain.ErrForbidden), "lead moving a course out")

	_, err = svc.UpdateCourse(ctx, s.as(s.leadA), s.courseA1.ID, domain.CourseInput{Code: strPtr("A2")})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	moved, err := svc.UpdateCourse(ctx, s.as(s.admin), s.courseA1.ID, domain.CourseInput{DepartmentID: &s.deptB.ID})
	require.NoError(t, err)
	assert.Equal(t, s.deptB.ID, moved.DepartmentID)
}

func TestUpdateStudents(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()

	course, err := svc.UpdateStudents(ctx, s.as(s.leadA), s.courseA2.ID, domain.EnrollAdd, []uint{s.student1.ID, s.student2.ID, s.student1.ID})
	require.NoError(t, err)
	assert.Len(t, course.Students, 2)
	assert.Contains(t, s.events.types(), constants.EventCourseStudentsChanged)

	// Adding an already enrolled student is a no-op.
	course, err = svc.UpdateStudents(ctx, s.as(s.leadA), s.courseA2.ID, domain.EnrollAdd, []uint{s.student1.ID})
	require.NoError(t, err)
	assert.Len(t, course.Students, 2)

	course, err = svc.UpdateStudents(ctx, s.as(s.admin), s.courseA2.ID, domain.EnrollRemove, []uint{s.student2.ID})
	require.NoError(t, err)
	require.Len(t, course.Students, 1)
	assert.Equal(t, s.student1.ID, course.Students[0].ID)

	_, err = svc.UpdateStudents(ctx, s.as(s.admin), s.courseA2.ID, domain.EnrollAdd, []uint{s.trainerA.ID})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput), "not a student")

	_, err = svc.UpdateStudents(ctx, s.as(s.admin), s.courseA2.ID, "swap", []uint{s.student1.ID})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.UpdateStudents(ctx, s.as(s.admin), s.courseA2.ID, domain.EnrollAdd, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.UpdateStudents(ctx, s.as(s.trainerB), s.courseA2.ID, domain.EnrollAdd, []uint{s.student2.ID})
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestDeleteCourse(t *testing.T) {
	s := newSchool(t)
	svc := s.courses(policy.Options{})
	ctx := context.Background()
	entry := s.addEntry(t, s.courseA1, s.trainerA, 1)

	err := svc.DeleteCourse(ctx, s.as(s.admin), s.courseA1.ID)
	assert.True(t, errors.Is(err, domain.ErrInUse), "course with hours")
	var kept model.Course
	require.NoError(t, s.db.Preload("Students").First(&kept, s.courseA1.ID).Error)
	assert.Equal(t, s.courseA1.Code, kept.Code)
	assert.Len(t, kept.Students, 1)

	err = svc.DeleteCourse(ctx, s.as(s.leadB), s.courseA2.ID)
	assert.True(t, errors.Is(err, domain.ErrForbidden))

	require.NoError(t, s.db.Delete(&entry).Error)
	require.NoError(t, svc.DeleteCourse(ctx, s.as(s.leadA), s.courseA1.ID))
	assert.Contains(t, s.events.types(), constants.EventCourseDeleted)

	_, err = svc.GetCourse(ctx, s.as(s.admin), s.courseA1.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	var links int64
	require.NoError(t, s.db.Table("course_students").Where("course_id = ?", s.courseA1.ID).Count(&links).Error)
	assert.Zero(t, links)
}

func TestDeleteCourse_ThenHoursCannotBeCreated(t *testing.T) {
	s := newSchool(t)
	courses := s.courses(policy.Options{})
	ctx := context.Background()

	require.NoError(t, courses.DeleteCourse(ctx, s.as(s.admin), s.courseA2.ID))
	_, err := s.hours().CreateHour(ctx, s.as(s.trainerB), domain.CreateHourInput{
		CourseID: s.courseA2.ID,
		Date:     time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC),
		Hours:    1,
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
