package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"gorm.io/gorm"

	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/event"
	"gestionlearn.com/internal/model"
	"gestionlearn.com/internal/policy"
)

const courseCodeTaken = "A course with this code already exists"

// CourseServiceImpl 实现 domain.CourseService 接口
type CourseServiceImpl struct {
	db     *gorm.DB
	gate   *policy.Gate
	rules  *policy.CoursePolicy
	opts   policy.Options
	events event.Publisher
}

var _ domain.CourseService = (*CourseServiceImpl)(nil)

func NewCourseService(db *gorm.DB, gate *policy.Gate, opts policy.Options, events event.Publisher) *CourseServiceImpl {
	return &CourseServiceImpl{
		db:     db,
		gate:   gate,
		rules:  &policy.CoursePolicy{Options: opts},
		opts:   opts,
		events: events,
	}
}

func (s *CourseServiceImpl) withRelations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Department").
		Preload("Teacher").
		Preload("Students", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") })
}

func (s *CourseServiceImpl) load(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := s.withRelations(ctx).First(&course, id).Error; err != nil {
		return nil, lookupError(err, "Course")
	}
	return &course, nil
}

func (s *CourseServiceImpl) ListCourses(ctx context.Context, actor domain.Principal) ([]model.Course, error) {
	var courses []model.Course
	if err := s.withRelations(ctx).
		Scopes(s.rules.Scope(actor)).
		Order("title ASC").
		Find(&courses).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch courses", err)
	}
	return courses, nil
}

func (s *CourseServiceImpl) GetCourse(ctx context.Context, actor domain.Principal, id uint) (*model.Course, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionRead, policy.ResourceCourse, course); err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseServiceImpl) checkDepartment(ctx context.Context, id uint) error {
	ok, err := exists(s.db.WithContext(ctx), &model.Department{}, "id = ?", id)
	if err != nil {
		return domain.NewInternalError("failed to check department", err)
	}
	if !ok {
		return domain.NewValidationError("Department not found", []domain.FieldError{{Field: "department", Message: "unknown department"}})
	}
	return nil
}

// checkTeacher verifies that teacherID names a trainer or lead trainer and,
// when configured, that they belong to departmentID.
func (s *CourseServiceImpl) checkTeacher(ctx context.Context, teacherID, departmentID uint) error {
	var teacher model.User
	if err := s.db.WithContext(ctx).First(&teacher, teacherID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewValidationError("Teacher not found", []domain.FieldError{{Field: "teacher", Message: "unknown user"}})
		}
		return domain.NewInternalError("failed to load teacher", err)
	}
	if teacher.Role != model.RoleTrainer && teacher.Role != model.RoleLeadTrainer {
		return domain.NewValidationError("Teacher must be a trainer", []domain.FieldError{{Field: "teacher", Message: "not a trainer"}})
	}
	if s.opts.EnforceTeacherDepartment && (teacher.DepartmentID == nil || *teacher.DepartmentID != departmentID) {
		return domain.NewValidationError("Teacher must belong to the course department", []domain.FieldError{{Field: "teacher", Message: "outside course department"}})
	}
	return nil
}

func (s *CourseServiceImpl) checkCode(ctx context.Context, code string, exceptID uint) error {
	taken, err := exists(s.db.WithContext(ctx), &model.Course{}, "code = ? AND id <> ?", code, exceptID)
	if err != nil {
		return domain.NewInternalError("failed to check course code", err)
	}
	if taken {
		return domain.NewConflictError(courseCodeTaken)
	}
	return nil
}

func (s *CourseServiceImpl) CreateCourse(ctx context.Context, actor domain.Principal, input domain.CourseInput) (*model.Course, error) {
	var fields []domain.FieldError
	if input.Title == nil || strings.TrimSpace(*input.Title) == "" {
		fields = append(fields, domain.FieldError{Field: "title", Message: "required"})
	}
	if input.Code == nil || strings.TrimSpace(*input.Code) == "" {
		fields = append(fields, domain.FieldError{Field: "code", Message: "required"})
	}

	// Lead trainers always create in their own department.
	departmentID := input.DepartmentID
	if actor.Role == model.RoleLeadTrainer {
		if actor.DepartmentID == nil {
			return nil, domain.NewForbiddenError("You are not assigned to a department")
		}
		departmentID = actor.DepartmentID
	}
	if departmentID == nil {
		fields = append(fields, domain.FieldError{Field: "department", Message: "required"})
	}
	if len(fields) > 0 {
		return nil, domain.NewValidationError("Invalid course", fields)
	}

	course := &model.Course{
		Title:        strings.TrimSpace(*input.Title),
		Code:         strings.TrimSpace(*input.Code),
		DepartmentID: *departmentID,
		TeacherID:    input.TeacherID,
	}
	if input.Description != nil {
		course.Description = *input.Description
	}

	if err := s.gate.Authorize(ctx, actor, policy.ActionCreate, policy.ResourceCourse, course); err != nil {
		return nil, err
	}
	if err := s.checkDepartment(ctx, course.DepartmentID); err != nil {
		return nil, err
	}
	if course.TeacherID != nil {
		if err := s.checkTeacher(ctx, *course.TeacherID, course.DepartmentID); err != nil {
			return nil, err
		}
	}
	if err := s.checkCode(ctx, course.Code, 0); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(course).Error; err != nil {
		return nil, writeError(err, "course", courseCodeTaken)
	}

	log.Printf("CourseService: course %d created by %d", course.ID, actor.ID)
	created, err := s.load(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	var notify []uint
	if created.TeacherID != nil {
		notify = append(notify, *created.TeacherID)
	}
	emit(s.events, event.Event{
		Type:    constants.EventCourseCreated,
		Source:  "CourseService",
		ActorID: actor.ID,
		Data:    created,
		UserIDs: notify,
	})
	return created, nil
}

func (s *CourseServiceImpl) UpdateCourse(ctx context.Context, actor domain.Principal, id uint, input domain.CourseInput) (*model.Course, error) {
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	change := policy.CourseChange{Current: course, NewDepartmentID: input.DepartmentID}
	if err := s.gate.Authorize(ctx, actor, policy.ActionUpdate, policy.ResourceCourse, change); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, domain.NewValidationError("Invalid course", []domain.FieldError{{Field: "title", Message: "required"}})
		}
		updates["title"] = title
	}
	if input.Code != nil {
		code := strings.TrimSpace(*input.Code)
		if code == "" {
			return nil, domain.NewValidationError("Invalid course", []domain.FieldError{{Field: "code", Message: "required"}})
		}
		if err := s.checkCode(ctx, code, id); err != nil {
			return nil, err
		}
		updates["code"] = code
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}

	departmentID := course.DepartmentID
	if input.DepartmentID != nil && *input.DepartmentID != course.DepartmentID {
		if err := s.checkDepartment(ctx, *input.DepartmentID); err != nil {
			return nil, err
		}
		departmentID = *input.DepartmentID
		updates["department_id"] = departmentID
	}

	teacherID := course.TeacherID
	if input.TeacherID != nil {
		teacherID = input.TeacherID
		updates["teacher_id"] = *input.TeacherID
	}
	_, teacherChanged := updates["teacher_id"]
	_, departmentChanged := updates["department_id"]
	if teacherID != nil && (teacherChanged || departmentChanged) {
		if err := s.checkTeacher(ctx, *teacherID, departmentID); err != nil {
			return nil, err
		}
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.Course{ID: id}).Updates(updates).Error; err != nil {
			return nil, writeError(err, "course", courseCodeTaken)
		}
		log.Printf("CourseService: course %d updated by %d", id, actor.ID)
	}
	return s.load(ctx, id)
}

// UpdateStudents adds or removes students. Every id must name an existing student.
func (s *CourseServiceImpl) UpdateStudents(ctx context.Context, actor domain.Principal, id uint, action domain.EnrollmentAction, studentIDs []uint) (*model.Course, error) {
	if action != domain.EnrollAdd && action != domain.EnrollRemove {
		return nil, domain.NewValidationError("Invalid action", []domain.FieldError{{Field: "action", Message: "must be add or remove"}})
	}
	if len(studentIDs) == 0 {
		return nil, domain.NewValidationError("No students given", []domain.FieldError{{Field: "studentIds", Message: "required"}})
	}

	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionUpdate, policy.ResourceCourse, course); err != nil {
		return nil, err
	}

	unique := make(map[uint]bool, len(studentIDs))
	for _, sid := range studentIDs {
		unique[sid] = true
	}
	var students []model.User
	if err := s.db.WithContext(ctx).
		Where("id IN ? AND role = ?", studentIDs, model.RoleStudent).
		Find(&students).Error; err != nil {
		return nil, domain.NewInternalError("failed to load students", err)
	}
	if len(students) != len(unique) {
		return nil, domain.NewValidationError("Unknown students", []domain.FieldError{{Field: "studentIds", Message: "must reference existing students"}})
	}

	assoc := s.db.WithContext(ctx).Model(&model.Course{ID: id}).Association("Students")
	if action == domain.EnrollAdd {
		err = assoc.Append(&students)
	} else {
		err = assoc.Delete(&students)
	}
	if err != nil {
		return nil, domain.NewInternalError("failed to update students", err)
	}

	log.Printf("CourseService: %s %d students on course %d", action, len(students), id)
	updated, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	emit(s.events, event.Event{
		Type:    constants.EventCourseStudentsChanged,
		Source:  "CourseService",
		ActorID: actor.ID,
		Data:    map[string]interface{}{"courseId": id, "action": action, "studentIds": ids},
		UserIDs: ids,
	})
	return updated, nil
}

// DeleteCourse refuses while hour entries reference the course.
func (s *CourseServiceImpl) DeleteCourse(ctx context.Context, actor domain.Principal, id uint) error {
	course, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionDelete, policy.ResourceCourse, course); err != nil {
		return err
	}

	hasHours, err := exists(s.db.WithContext(ctx), &model.HourEntry{}, "course_id = ?", id)
	if err != nil {
		return domain.NewInternalError("failed to check course hours", err)
	}
	if hasHours {
		return domain.NewInUseError("Course cannot be deleted because it has recorded hours")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Course{ID: id}).Association("Students").Clear(); err != nil {
			return err
		}
		return tx.Delete(&model.Course{}, id).Error
	})
	if err != nil {
		return domain.NewInternalError("failed to delete course", err)
	}

	log.Printf("CourseService: course %d deleted by %d", id, actor.ID)
	var notify []uint
	if course.TeacherID != nil {
		notify = append(notify, *course.TeacherID)
	}
	emit(s.events, event.Event{
		Type:    constants.EventCourseDeleted,
		Source:  "CourseService",
		ActorID: actor.ID,
		Data:    map[string]interface{}{"id": id, "code": course.Code, "title": course.Title},
		UserIDs: notify,
	})
	return nil
}
