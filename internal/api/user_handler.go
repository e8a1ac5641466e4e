package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/model"
)

// UserHandler 处理用户管理相关的 HTTP 请求
type UserHandler struct {
	userSvc domain.UserService
}

func NewUserHandler(userSvc domain.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

type CreateUserRequest struct {
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	Role         string `json:"role" validate:"required,oneof=admin hr lead_trainer trainer student"`
	DepartmentID *uint  `json:"department"`
	IsActive     *bool  `json:"isActive"`
}

type UpdateUserRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Role         *string `json:"role" validate:"omitempty,oneof=admin hr lead_trainer trainer student"`
	DepartmentID *uint   `json:"department"`
	IsActive     *bool   `json:"isActive"`
}

type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin hr lead_trainer trainer student"`
}

type ActivateRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// ListUsers 分页获取用户列表
// GET /api/users
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "50"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	users, total, err := h.userSvc.ListUsers(c.UserContext(), page, pageSize)
	if err != nil {
		return handleError(c, err)
	}
	return SendPaginatedResponse(c, "users", users, page, pageSize, total)
}

// ListStudents GET /api/users/students
func (h *UserHandler) ListStudents(c *fiber.Ctx) error {
	return h.listByRole(c, model.RoleStudent)
}

// ListTeachers returns trainers only; lead trainers are not included.
// GET /api/users/teachers
func (h *UserHandler) ListTeachers(c *fiber.Ctx) error {
	return h.listByRole(c, model.RoleTrainer)
}

func (h *UserHandler) listByRole(c *fiber.Ctx, role model.Role) error {
	users, err := h.userSvc.ListByRole(c.UserContext(), role)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"users": users})
}

// GetUser GET /api/users/:id
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	user, err := h.userSvc.GetUser(c.UserContext(), id)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"user": user})
}

// CreateUser POST /api/users
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.userSvc.CreateUser(c.UserContext(), domain.CreateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		Password:     req.Password,
		Role:         model.Role(req.Role),
		DepartmentID: req.DepartmentID,
		IsActive:     req.IsActive,
	})
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusCreated, "User created", fiber.Map{"user": user})
}

// UpdateUser PATCH /api/users/:id
func (h *UserHandler) UpdateUser(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req UpdateUserRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	input := domain.UpdateUserInput{
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
		IsActive:     req.IsActive,
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		input.Role = &role
	}

	user, err := h.userSvc.UpdateUser(c.UserContext(), id, input)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "User updated", fiber.Map{"user": user})
}

// SetRole PATCH /api/users/:id/role
func (h *UserHandler) SetRole(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req RoleRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.userSvc.SetRole(c.UserContext(), id, model.Role(req.Role))
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Role updated", fiber.Map{"user": user})
}

// SetActive PATCH /api/users/:id/activate
func (h *UserHandler) SetActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req ActivateRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	user, err := h.userSvc.SetActive(c.UserContext(), id, *req.IsActive)
	if err != nil {
		return handleError(c, err)
	}
	message := "User deactivated"
	if user.IsActive {
		message = "User activated"
	}
	return sendData(c, fiber.StatusOK, message, fiber.Map{"user": user})
}

// ChangePassword PATCH /api/users/:id/password
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req ChangePasswordRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	if err := h.userSvc.ChangePassword(c.UserContext(), principal(c), id, req.CurrentPassword, req.NewPassword); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Password changed", nil)
}
