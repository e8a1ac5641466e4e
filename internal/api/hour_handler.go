package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/domain"
)

// HourHandler 处理课时记录相关的 HTTP 请求
type HourHandler struct {
	hourSvc domain.HourService
}

func NewHourHandler(hourSvc domain.HourService) *HourHandler {
	return &HourHandler{hourSvc: hourSvc}
}

type CreateHourRequest struct {
	CourseID    uint    `json:"course" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	Hours       float64 `json:"hours" validate:"required,gt=0"`
	Description string  `json:"description"`
	TeacherID   *uint   `json:"teacher"`
}

type UpdateHourRequest struct {
	Date        *string  `json:"date"`
	Hours       *float64 `json:"hours" validate:"omitempty,gt=0"`
	Description *string  `json:"description"`
}

// ListHours returns the entries visible to the caller, newest first.
// Optional filters: course, from, to.
// GET /api/hours and GET /api/hours/me
func (h *HourHandler) ListHours(c *fiber.Ctx) error {
	var (
		filter domain.HourFilter
		err    error
	)
	if filter.CourseID, err = queryID(c, "course"); err != nil {
		return handleError(c, err)
	}
	if filter.From, err = queryDate(c, "from"); err != nil {
		return handleError(c, err)
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		return handleError(c, err)
	}
	// A plain day covers every entry recorded on it.
	if filter.To != nil && isDateOnly(c, "to") {
		next := filter.To.AddDate(0, 0, 1)
		filter.Before, filter.To = &next, nil
	}

	hours, err := h.hourSvc.ListHours(c.UserContext(), principal(c), filter)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"hours": hours})
}

// GetHour GET /api/hours/:id
func (h *HourHandler) GetHour(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	hour, err := h.hourSvc.GetHour(c.UserContext(), principal(c), id)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "OK", fiber.Map{"hour": hour})
}

// CreateHour POST /api/hours
func (h *HourHandler) CreateHour(c *fiber.Ctx) error {
	var req CreateHourRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		return handleError(c, err)
	}

	hour, err := h.hourSvc.CreateHour(c.UserContext(), principal(c), domain.CreateHourInput{
		CourseID:    req.CourseID,
		TeacherID:   req.TeacherID,
		Date:        date,
		Hours:       req.Hours,
		Description: req.Description,
	})
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusCreated, "Hours recorded", fiber.Map{"hour": hour})
}

// UpdateHour changes date, hours or description only
// PATCH /api/hours/:id
func (h *HourHandler) UpdateHour(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}
	var req UpdateHourRequest
	if err := parseBody(c, &req); err != nil {
		return handleError(c, err)
	}

	input := domain.UpdateHourInput{Hours: req.Hours, Description: req.Description}
	if req.Date != nil {
		var date time.Time
		if date, err = parseDate("date", *req.Date); err != nil {
			return handleError(c, err)
		}
		input.Date = &date
	}

	hour, err := h.hourSvc.UpdateHour(c.UserContext(), principal(c), id, input)
	if err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Hours updated", fiber.Map{"hour": hour})
}

// DeleteHour DELETE /api/hours/:id
func (h *HourHandler) DeleteHour(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return handleError(c, err)
	}

	if err := h.hourSvc.DeleteHour(c.UserContext(), principal(c), id); err != nil {
		return handleError(c, err)
	}
	return sendData(c, fiber.StatusOK, "Hours deleted", nil)
}
