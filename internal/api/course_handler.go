package api

import (
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/domain"
)

// CourseHandler 处理课程相关的 HTTP 请求
type CourseHandler struct {
	courseSvc domain.CourseService
}

func NewCourseHandler(courseSvc domain.CourseService) *CourseHandler {
	return &CourseHandler{courseSvc: courseSvc}
}

type CourseRequest struct {
	Title        *string `json:"title"`
	Code         *string `json:"code"`
	Description  *string `json:"description"`
	DepartmentID *uint   `json:"department"`
	TeacherID    *uint   `json:"teacher"`
}

func (r CourseRequest) input() domain.CourseInput {
	return domain.CourseInput{
		Title:        r.Title,
		Code:         r.Code,
		Description:  r.Description,
		DepartmentID: r.DepartmentID,
		TeacherID:    r.TeacherID,
	}
}

type EnrollmentRequest struct {
	Action     string `json:"action" validate:"required,oneof=add remove"`
	StudentIDs []uint `json:"studentIds" validate:"required,min=1"`
}

// ListCourses returns the courses visible to the caller
// GET /api/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	courses, err := h.courseSvc.ListCourses(c.UserContext(), principal(c))
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"courses": courses})
}

// GetCourse GET /api/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	course, err := h.courseSvc.GetCourse(c.UserContext(), principal(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"course": course})
}

// CreateCourse POST /api/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	var req CourseRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	course, err := h.courseSvc.CreateCourse(c.UserContext(), principal(c), req.input())
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusCreated, "Course created", fiber.Map{"course": course})
}

// UpdateCourse PATCH /api/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req CourseRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	course, err := h.courseSvc.UpdateCourse(c.UserContext(), principal(c), id, req.input())
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Course updated", fiber.Map{"course": course})
}

// UpdateStudents adds or removes enrolled students
// PATCH /api/courses/:id/students
func (h *CourseHandler) UpdateStudents(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req EnrollmentRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	course, err := h.courseSvc.UpdateStudents(c.UserContext(), principal(c), id, domain.EnrollmentAction(req.Action), req.StudentIDs)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Students updated", fiber.Map{"course": course})
}

// DeleteCourse DELETE /api/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.courseSvc.DeleteCourse(c.UserContext(), principal(c), id); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Course deleted", nil)
}
