package service

import (
	"context"
	"log"
	"strings"

	"gorm.io/gorm"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

const departmentNameTaken = "A department with this name already exists"

// DepartmentServiceImpl 实现 domain.DepartmentService 接口
type DepartmentServiceImpl struct {
	db *gorm.DB
}

var _ domain.DepartmentService = (*DepartmentServiceImpl)(nil)

func NewDepartmentService(db *gorm.DB) *DepartmentServiceImpl {
	return &DepartmentServiceImpl{db: db}
}

func (s *DepartmentServiceImpl) ListDepartments(ctx context.Context) ([]model.Department, error) {
	var departments []model.Department
	if err := s.db.WithContext(ctx).Preload("MainTeacher").Order("name ASC").Find(&departments).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch departments", err)
	}
	return departments, nil
}

func (s *DepartmentServiceImpl) GetDepartment(ctx context.Context, id uint) (*model.Department, error) {
	var department model.Department
	if err := s.db.WithContext(ctx).Preload("MainTeacher").First(&department, id).Error; err != nil {
		return nil, lookupError(err, "Department")
	}
	return &department, nil
}

func (s *DepartmentServiceImpl) checkName(ctx context.Context, name string, exceptID uint) error {
	taken, err := exists(s.db.WithContext(ctx), &model.Department{}, "name = ? AND id <> ?", name, exceptID)
	if err != nil {
		return domain.NewInternalError("failed to check department name", err)
	}
	if taken {
		return domain.NewConflictError(departmentNameTaken)
	}
	return nil
}

func (s *DepartmentServiceImpl) checkMainTeacher(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	ok, err := exists(s.db.WithContext(ctx), &model.User{}, "id = ?", *id)
	if err != nil {
		return domain.NewInternalError("failed to check main teacher", err)
	}
	if !ok {
		return domain.NewValidationError("Main teacher not found", []domain.FieldError{{Field: "mainTeacher", Message: "unknown user"}})
	}
	return nil
}

func (s *DepartmentServiceImpl) CreateDepartment(ctx context.Context, input domain.DepartmentInput) (*model.Department, error) {
	if input.Name == nil || strings.TrimSpace(*input.Name) == "" {
		return nil, domain.NewValidationError("Department name is required", []domain.FieldError{{Field: "name", Message: "required"}})
	}
	name := strings.TrimSpace(*input.Name)
	if err := s.checkName(ctx, name, 0); err != nil {
		return nil, err
	}
	if err := s.checkMainTeacher(ctx, input.MainTeacherID); err != nil {
		return nil, err
	}

	department := &model.Department{Name: name, MainTeacherID: input.MainTeacherID}
	if input.Description != nil {
		department.Description = *input.Description
	}
	if err := s.db.WithContext(ctx).Create(department).Error; err != nil {
		return nil, writeError(err, "department", departmentNameTaken)
	}

	log.Printf("DepartmentService: department %d created", department.ID)
	return s.GetDepartment(ctx, department.ID)
}

func (s *DepartmentServiceImpl) UpdateDepartment(ctx context.Context, id uint, input domain.DepartmentInput) (*model.Department, error) {
	if _, err := s.GetDepartment(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, domain.NewValidationError("Department name is required", []domain.FieldError{{Field: "name", Message: "required"}})
		}
		if err := s.checkName(ctx, name, id); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.MainTeacherID != nil {
		if err := s.checkMainTeacher(ctx, input.MainTeacherID); err != nil {
			return nil, err
		}
		updates["main_teacher_id"] = *input.MainTeacherID
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Department{ID: id}).Updates(updates).Error; err != nil {
			return nil, writeError(err, "department", departmentNameTaken)
		}
	}
	return s.GetDepartment(ctx, id)
}

// DeleteDepartment refuses while users or courses still reference the department.
func (s *DepartmentServiceImpl) DeleteDepartment(ctx context.Context, id uint) error {
	if _, err := s.GetDepartment(ctx, id); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	hasUsers, err := exists(db, &model.User{}, "department_id = ?", id)
	if err != nil {
		return domain.NewInternalError("failed to check department users", err)
	}
	if hasUsers {
		return domain.NewInUseError("Department cannot be deleted because it still has users")
	}
	hasCourses, err := exists(db, &model.Course{}, "department_id = ?", id)
	if err != nil {
		return domain.NewInternalError("failed to check department courses", err)
	}
	if hasCourses {
		return domain.NewInUseError("Department cannot be deleted because it still has courses")
	}

	if err := db.Delete(&model.Department{}, id).Error; err != nil {
		return domain.NewInternalError("failed to delete department", err)
	}
	log.Printf("DepartmentService: department %d deleted", id)
	return nil
}
