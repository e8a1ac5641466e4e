package service

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/event"
	"gestionlearn.com/internal/model"
	"gestionlearn.com/internal/policy"
)

// HourServiceImpl 实现 domain.HourService 接口
type HourServiceImpl struct {
	db     *gorm.DB
	gate   *policy.Gate
	rules  *policy.HourEntryPolicy
	events event.Publisher
}

var _ domain.HourService = (*HourServiceImpl)(nil)

func NewHourService(db *gorm.DB, gate *policy.Gate, opts policy.Options, events event.Publisher) *HourServiceImpl {
	return &HourServiceImpl{
		db:     db,
		gate:   gate,
		rules:  &policy.HourEntryPolicy{Options: opts},
		events: events,
	}
}

// withSummary preloads the course and teacher fields shown alongside an entry.
func (s *HourServiceImpl) withSummary(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Course", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "title", "code", "description", "department_id", "teacher_id", "created_at", "updated_at")
		}).
		Preload("Teacher", func(tx *gorm.DB) *gorm.DB {
			return tx.Select("id", "name", "email", "role", "department_id", "is_active", "created_at", "updated_at")
		})
}

func (s *HourServiceImpl) ListHours(ctx context.Context, actor domain.Principal, filter domain.HourFilter) ([]model.HourEntry, error) {
	query := s.withSummary(ctx).Model(&model.HourEntry{}).Scopes(s.rules.Scope(actor))
	if filter.CourseID != nil {
		query = query.Where("course_id = ?", *filter.CourseID)
	}
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date <= ?", *filter.To)
	}
	if filter.Before != nil {
		query = query.Where("date < ?", *filter.Before)
	}

	var entries []model.HourEntry
	if err := query.Order("date DESC").Order("id DESC").Find(&entries).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch hour entries", err)
	}
	return entries, nil
}

// loadCourse fetches a course with just the student ids the policy needs.
func (s *HourServiceImpl) loadCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Preload("Students", func(tx *gorm.DB) *gorm.DB { return tx.Select("id") }).
		First(&course, id).Error
	if err != nil {
		return nil, lookupError(err, "Course")
	}
	return &course, nil
}

func (s *HourServiceImpl) loadTarget(ctx context.Context, id uint) (policy.HourTarget, error) {
	var entry model.HourEntry
	if err := s.withSummary(ctx).First(&entry, id).Error; err != nil {
		return policy.HourTarget{}, lookupError(err, "Hour entry")
	}
	course, err := s.loadCourse(ctx, entry.CourseID)
	if err != nil {
		return policy.HourTarget{}, err
	}
	return policy.HourTarget{Entry: &entry, Course: course}, nil
}

func (s *HourServiceImpl) GetHour(ctx context.Context, actor domain.Principal, id uint) (*model.HourEntry, error) {
	target, err := s.loadTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionRead, policy.ResourceHourEntry, target); err != nil {
		return nil, err
	}
	return target.Entry, nil
}

// CreateHour records hours on a course. Trainers always record for
// themselves; other roles may name the teacher, which otherwise defaults to
// the course's teacher and then to the caller.
func (s *HourServiceImpl) CreateHour(ctx context.Context, actor domain.Principal, input domain.CreateHourInput) (*model.HourEntry, error) {
	if err := validateHours(input.Hours); err != nil {
		return nil, err
	}
	if input.Date.IsZero() {
		return nil, domain.NewValidationError("Invalid hour entry", []domain.FieldError{{Field: "date", Message: "required"}})
	}

	course, err := s.loadCourse(ctx, input.CourseID)
	if err != nil {
		return nil, err
	}

	teacherID := actor.ID
	if actor.Role != model.RoleTrainer {
		switch {
		case input.TeacherID != nil:
			teacherID = *input.TeacherID
		case course.TeacherID != nil:
			teacherID = *course.TeacherID
		}
		if teacherID != actor.ID {
			ok, err := exists(s.db.WithContext(ctx), &model.User{}, "id = ?", teacherID)
			if err != nil {
				return nil, domain.NewInternalError("failed to check teacher", err)
			}
			if !ok {
				return nil, domain.NewValidationError("Teacher not found", []domain.FieldError{{Field: "teacher", Message: "unknown user"}})
			}
		}
	}

	entry := &model.HourEntry{
		CourseID:    course.ID,
		TeacherID:   teacherID,
		Date:        input.Date,
		Hours:       input.Hours,
		Description: input.Description,
	}
	target := policy.HourTarget{Entry: entry, Course: course}
	if err := s.gate.Authorize(ctx, actor, policy.ActionCreate, policy.ResourceHourEntry, target); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, domain.NewInternalError("failed to save hour entry", err)
	}
	log.Printf("HourService: entry %d created on course %d for teacher %d", entry.ID, entry.CourseID, entry.TeacherID)

	created, err := s.reload(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	s.notify(constants.EventHourCreated, actor, created)
	return created, nil
}

func (s *HourServiceImpl) UpdateHour(ctx context.Context, actor domain.Principal, id uint, input domain.UpdateHourInput) (*model.HourEntry, error) {
	target, err := s.loadTarget(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionUpdate, policy.ResourceHourEntry, target); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Date != nil {
		if input.Date.IsZero() {
			return nil, domain.NewValidationError("Invalid hour entry", []domain.FieldError{{Field: "date", Message: "invalid"}})
		}
		updates["date"] = *input.Date
	}
	if input.Hours != nil {
		if err := validateHours(*input.Hours); err != nil {
			return nil, err
		}
		updates["hours"] = *input.Hours
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.HourEntry{ID: id}).Updates(updates).Error; err != nil {
			return nil, domain.NewInternalError("failed to update hour entry", err)
		}
		log.Printf("HourService: entry %d updated by %d", id, actor.ID)
	}

	updated, err := s.reload(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(constants.EventHourUpdated, actor, updated)
	return updated, nil
}

func (s *HourServiceImpl) DeleteHour(ctx context.Context, actor domain.Principal, id uint) error {
	target, err := s.loadTarget(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.Authorize(ctx, actor, policy.ActionDelete, policy.ResourceHourEntry, target); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Delete(&model.HourEntry{}, id).Error; err != nil {
		return domain.NewInternalError("failed to delete hour entry", err)
	}
	log.Printf("HourService: entry %d deleted by %d", id, actor.ID)
	s.notify(constants.EventHourDeleted, actor, target.Entry)
	return nil
}

func (s *HourServiceImpl) reload(ctx context.Context, id uint) (*model.HourEntry, error) {
	var entry model.HourEntry
	if err := s.withSummary(ctx).First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("Hour entry not found")
		}
		return nil, domain.NewInternalError("failed to load hour entry", err)
	}
	return &entry, nil
}

// notify tells the entry's teacher, and admins and hr, about a change.
func (s *HourServiceImpl) notify(eventType string, actor domain.Principal, entry *model.HourEntry) {
	emit(s.events, event.Event{
		Type:    eventType,
		Source:  "HourService",
		ActorID: actor.ID,
		Data:    entry,
		UserIDs: []uint{entry.TeacherID},
		Roles:   []model.Role{model.RoleAdmin, model.RoleHR},
	})
}

func validateHours(h float64) error {
	if h <= 0 {
		return domain.NewValidationError("Invalid hour entry", []domain.FieldError{{Field: "hours", Message: "must be positive"}})
	}
	return nil
}
