package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

func TestDepartmentCRUD(t *testing.T) {
	s := newSchool(t)
	svc := NewDepartmentService(s.db)
	ctx := context.Background()

	dept, err := svc.CreateDepartment(ctx, domain.DepartmentInput{
		Name:          strPtr("  Langues "),
		Description:   strPtr("Anglais, Espagnol"),
		MainTeacherID: &s.leadA.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Langues", dept.Name)
	require.NotNil(t, dept.MainTeacher)
	assert.Equal(t, s.leadA.ID, dept.MainTeacher.ID)

	all, err := svc.ListDepartments(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(all))
	for _, d := range all {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Gestion", "Informatique", "Langues"}, names)

	dept, err = svc.UpdateDepartment(ctx, dept.ID, domain.DepartmentInput{Name: strPtr("Langues vivantes")})
	require.NoError(t, err)
	assert.Equal(t, "Langues vivantes", dept.Name)
	assert.Equal(t, "Anglais, Espagnol", dept.Description)

	require.NoError(t, svc.DeleteDepartment(ctx, dept.ID))
	_, err = svc.GetDepartment(ctx, dept.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDepartment_Validation(t *testing.T) {
	s := newSchool(t)
	svc := NewDepartmentService(s.db)
	ctx := context.Background()

	_, err := svc.CreateDepartment(ctx, domain.DepartmentInput{Name: strPtr("   ")})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.CreateDepartment(ctx, domain.DepartmentInput{Name: strPtr("Gestion")})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	_, err = svc.CreateDepartment(ctx, domain.DepartmentInput{Name: strPtr("Droit"), MainTeacherID: uintPtr(9999)})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = svc.UpdateDepartment(ctx, s.deptA.ID, domain.DepartmentInput{Name: strPtr("Gestion")})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	// Renaming to its own name is fine.
	_, err = svc.UpdateDepartment(ctx, s.deptA.ID, domain.DepartmentInput{Name: strPtr("Informatique")})
	assert.NoError(t, err)

	_, err = svc.UpdateDepartment(ctx, 9999, domain.DepartmentInput{Name: strPtr("Nope")})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDeleteDepartment_InUse(t *testing.T) {
	s := newSchool(t)
	svc := NewDepartmentService(s.db)
	ctx := context.Background()

	err := svc.DeleteDepartment(ctx, s.deptB.ID)
	assert.True(t, errors.Is(err, domain.ErrInUse), "has users")

	require.NoError(t, s.db.Model(&model.User{}).Where("department_id = ?", s.deptB.ID).Update("department_id", nil).Error)
	err = svc.DeleteDepartment(ctx, s.deptB.ID)
	assert.True(t, errors.Is(err, domain.ErrInUse), "has courses")

	require.NoError(t, s.db.Exec("DELETE FROM course_students WHERE course_id = ?", s.courseB1.ID).Error)
	require.NoError(t, s.db.Delete(&model.Course{}, s.courseB1.ID).Error)
	assert.NoError(t, svc.DeleteDepartment(ctx, s.deptB.ID))
}

func TestWriteError_UniqueViolationIsConflict(t *testing.T) {
	s := newSchool(t)

	// Skips the service's name pre-check, as a concurrent insert would.
	err := s.db.Create(&model.Department{Name: s.deptA.Name}).Error
	require.Error(t, err)

	mapped := writeError(err, "department", departmentNameTaken)
	assert.True(t, errors.Is(mapped, domain.ErrAlreadyExists))
	appErr, ok := domain.AsAppError(mapped)
	require.True(t, ok)
	assert.Equal(t, domain.CodeConflict, appErr.Reason)
}
