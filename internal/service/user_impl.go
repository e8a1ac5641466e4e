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
)

const emailTaken = "Email is already in use"

// UserServiceImpl 实现 domain.UserService 接口
type UserServiceImpl struct {
	db     *gorm.DB
	events event.Publisher
}

var _ domain.UserService = (*UserServiceImpl)(nil)

func NewUserService(db *gorm.DB, events event.Publisher) *UserServiceImpl {
	return &UserServiceImpl{db: db, events: events}
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, page, pageSize int) ([]model.User, int64, error) {
	var users []model.User
	var total int64

	query := s.db.WithContext(ctx).Model(&model.User{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to count users", err)
	}

	offset := (page - 1) * pageSize
	if err := query.Preload("Department").
		Order("id ASC").
		Limit(pageSize).
		Offset(offset).
		Find(&users).Error; err != nil {
		return nil, 0, domain.NewInternalError("failed to fetch users", err)
	}
	return users, total, nil
}

// ListByRole returns the active users holding role, by name.
func (s *UserServiceImpl) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	var users []model.User
	if err := s.db.WithContext(ctx).Preload("Department").
		Where("role = ? AND is_active = ?", role, true).
		Order("name ASC").
		Find(&users).Error; err != nil {
		return nil, domain.NewInternalError("failed to fetch users", err)
	}
	return users, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Preload("Department").First(&user, id).Error; err != nil {
		return nil, lookupError(err, "User")
	}
	return &user, nil
}

func (s *UserServiceImpl) checkDepartment(ctx context.Context, id *uint) error {
	if id == nil {
		return nil
	}
	ok, err := exists(s.db.WithContext(ctx), &model.Department{}, "id = ?", *id)
	if err != nil {
		return domain.NewInternalError("failed to check department", err)
	}
	if !ok {
		return domain.NewValidationError("Department not found", []domain.FieldError{{Field: "department", Message: "unknown department"}})
	}
	return nil
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, input domain.CreateUserInput) (*model.User, error) {
	email := normalizeEmail(input.Email)
	role := input.Role
	if role == "" {
		role = model.RoleStudent
	}
	if !role.Valid() {
		return nil, domain.NewBadRequestError("Invalid role")
	}

	taken, err := exists(s.db.WithContext(ctx), &model.User{}, "email = ?", email)
	if err != nil {
		return nil, domain.NewInternalError("failed to check email", err)
	}
	if taken {
		return nil, domain.NewConflictError(emailTaken)
	}
	if err := s.checkDepartment(ctx, input.DepartmentID); err != nil {
		return nil, err
	}

	hash, err := hashSecret(input.Password)
	if err != nil {
		return nil, domain.NewInternalError("failed to hash password", err)
	}

	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	user := &model.User{
		Name:         input.Name,
		Email:        email,
		Password:     hash,
		Role:         role,
		DepartmentID: input.DepartmentID,
		IsActive:     active,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, writeError(err, "user", emailTaken)
	}

	log.Printf("UserService: user %d created with role %s", user.ID, user.Role)
	return s.GetUser(ctx, user.ID)
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, id uint, input domain.UpdateUserInput) (*model.User, error) {
	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		taken, err := exists(s.db.WithContext(ctx), &model.User{}, "email = ? AND id <> ?", email, id)
		if err != nil {
			return nil, domain.NewInternalError("failed to check email", err)
		}
		if taken {
			return nil, domain.NewConflictError(emailTaken)
		}
		updates["email"] = email
	}
	if input.Role != nil {
		if !input.Role.Valid() {
			return nil, domain.NewBadRequestError("Invalid role")
		}
		updates["role"] = *input.Role
	}
	if input.DepartmentID != nil {
		if err := s.checkDepartment(ctx, input.DepartmentID); err != nil {
			return nil, err
		}
		updates["department_id"] = *input.DepartmentID
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&model.User{ID: id}).Updates(updates).Error; err != nil {
			return nil, writeError(err, "user", emailTaken)
		}
	}
	return s.GetUser(ctx, id)
}

func (s *UserServiceImpl) SetRole(ctx context.Context, id uint, role model.Role) (*model.User, error) {
	return s.UpdateUser(ctx, id, domain.UpdateUserInput{Role: &role})
}

func (s *UserServiceImpl) SetActive(ctx context.Context, id uint, active bool) (*model.User, error) {
	user, err := s.UpdateUser(ctx, id, domain.UpdateUserInput{IsActive: &active})
	if err != nil {
		return nil, err
	}

	eventType := constants.EventUserDeactivated
	if active {
		eventType = constants.EventUserActivated
	}
	log.Printf("UserService: user %d active=%t", id, active)
	emit(s.events, event.Event{
		Type:    eventType,
		Source:  "UserService",
		Data:    user,
		UserIDs: []uint{id},
		Roles:   []model.Role{model.RoleAdmin, model.RoleHR},
	})
	return user, nil
}

// ChangePassword lets users change their own password given the current one;
// admin and hr may set anyone's password without it.
func (s *UserServiceImpl) ChangePassword(ctx context.Context, actor domain.Principal, id uint, currentPassword, newPassword string) error {
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return lookupError(err, "User")
	}

	switch {
	case actor.ID == id:
		if !matchSecret(user.Password, currentPassword) {
			return &domain.AppError{Code: 400, Reason: domain.CodeInvalidPassword, Message: "Current password is incorrect", Err: domain.ErrInvalidInput}
		}
	case actor.Is(model.RoleAdmin, model.RoleHR):
	default:
		return domain.NewForbiddenError("Not allowed to change this user's password")
	}

	hash, err := hashSecret(newPassword)
	if err != nil {
		return domain.NewInternalError("failed to hash password", err)
	}
	if err := s.db.WithContext(ctx).Model(&user).Update("password", hash).Error; err != nil {
		return domain.NewInternalError("failed to update password", err)
	}
	log.Printf("UserService: password of user %d changed by %d", id, actor.ID)
	return nil
}

func (s *UserServiceImpl) EnsureAdmin(ctx context.Context, email, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).Count(&count).Error; err != nil {
		return domain.NewInternalError("failed to count users", err)
	}
	if count > 0 {
		return nil
	}
	if email == "" || password == "" {
		log.Println("Auth: No users found and no bootstrap admin configured")
		return nil
	}

	log.Println("Auth: No users found. Creating bootstrap admin...")
	_, err := s.CreateUser(ctx, domain.CreateUserInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     model.RoleAdmin,
	})
	var appErr *domain.AppError
	if errors.As(err, &appErr) && errors.Is(appErr, domain.ErrAlreadyExists) {
		return nil
	}
	return err
}
