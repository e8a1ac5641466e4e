package api

import (
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/domain"
)

type DepartmentHandler struct {
	departmentSvc domain.DepartmentService
}

func NewDepartmentHandler(departmentSvc domain.DepartmentService) *DepartmentHandler {
	return &DepartmentHandler{departmentSvc: departmentSvc}
}

type DepartmentRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1"`
	Description   *string `json:"description"`
	MainTeacherID *uint   `json:"mainTeacher"`
}

func (r DepartmentRequest) input() domain.DepartmentInput {
	return domain.DepartmentInput{Name: r.Name, Description: r.Description, MainTeacherID: r.MainTeacherID}
}

// ListDepartments GET /api/departments
func (h *DepartmentHandler) ListDepartments(c *fiber.Ctx) error {
	departments, err := h.departmentSvc.ListDepartments(c.UserContext())
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"departments": departments})
}

// GetDepartment GET /api/departments/:id
func (h *DepartmentHandler) GetDepartment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	department, err := h.departmentSvc.GetDepartment(c.UserContext(), id)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"department": department})
}

// CreateDepartment POST /api/departments
func (h *DepartmentHandler) CreateDepartment(c *fiber.Ctx) error {
	var req DepartmentRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	department, err := h.departmentSvc.CreateDepartment(c.UserContext(), req.input())
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusCreated, "Department created", fiber.Map{"department": department})
}

// UpdateDepartment PATCH /api/departments/:id
func (h *DepartmentHandler) UpdateDepartment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req DepartmentRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	department, err := h.departmentSvc.UpdateDepartment(c.UserContext(), id, req.input())
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Department updated", fiber.Map{"department": department})
}

// DeleteDepartment DELETE /api/departments/:id
func (h *DepartmentHandler) DeleteDepartment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.departmentSvc.DeleteDepartment(c.UserContext(), id); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Department deleted", nil)
}
