package api

import (
	"errors"
	"log"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/api/middleware"
	"gestionlearn.com/internal/domain"
)

// Response 统一的 JSON 响应结构
type Response struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Code    string              `json:"code,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// Pagination 元数据结构
type Pagination struct {
	Page      int   `json:"page"`      // 当前页码
	PageSize  int   `json:"pageSize"`  // 每页条数
	Total     int64 `json:"total"`     // 总记录数
	TotalPage int   `json:"totalPage"` // 总页数
}

func sendData(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(Response{Success: true, Message: message, Data: data})
}

// SendPaginatedResponse 发送标准的分页响应，列表以 name 为键
func SendPaginatedResponse(c *fiber.Ctx, name string, items interface{}, page, pageSize int, total int64) error {
	totalPage := 0
	if pageSize > 0 {
		totalPage = int(math.Ceil(float64(total) / float64(pageSize)))
	}

	return sendData(c, fiber.StatusOK, "OK", fiber.Map{
		name: items,
		"pagination": Pagination{
			Page:      page,
			PageSize:  pageSize,
			Total:     total,
			TotalPage: totalPage,
		},
	})
}

// handleError renders err as an error envelope. Errors that are not
// domain.AppError become a generic 500.
func handleError(c *fiber.Ctx, err error) error {
	if appErr, ok := domain.AsAppError(err); ok {
		if appErr.Code >= fiber.StatusInternalServerError {
			log.Printf("API: %s %s failed: %v", c.Method(), c.Path(), appErr)
		}
		return c.Status(appErr.Code).JSON(Response{
			Message: appErr.Message,
			Code:    appErr.Reason,
			Errors:  appErr.Fields,
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(Response{Message: fe.Message, Code: codeForStatus(fe.Code)})
	}

	log.Printf("API: %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Message: "Internal server error",
		Code:    domain.CodeInternal,
	})
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return domain.CodeValidation
	case fiber.StatusUnauthorized:
		return domain.CodeAuthRequired
	case fiber.StatusForbidden:
		return domain.CodeForbidden
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return domain.CodeNotFound
	case fiber.StatusTooManyRequests:
		return domain.CodeRateLimited
	default:
		return domain.CodeInternal
	}
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// parseBody decodes the JSON body into dst and validates it.
func parseBody(c *fiber.Ctx, dst interface{}) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.NewBadRequestError("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.NewBadRequestError("Invalid request body")
		}
		fields := make([]domain.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, domain.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		return domain.NewValidationError("Validation error", fields)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "gt":
		return "must be greater than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "numeric":
		return "must be numeric"
	default:
		return "is invalid"
	}
}

// paramID reads a positive integer route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, domain.NewBadRequestError("Invalid " + name)
	}
	return uint(id), nil
}

// queryID reads an optional positive integer query parameter.
func queryID(c *fiber.Ctx, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil, domain.NewValidationError("Invalid query", []domain.FieldError{{Field: name, Message: "is invalid"}})
	}
	v := uint(id)
	return &v, nil
}

const dateLayout = "2006-01-02"

// parseDate accepts an RFC 3339 timestamp or a plain YYYY-MM-DD date.
func parseDate(field, raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, dateLayout} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, domain.NewValidationError("Invalid date", []domain.FieldError{{Field: field, Message: "must be an ISO date"}})
}

func queryDate(c *fiber.Ctx, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseDate(name, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// isDateOnly reports whether the query value names a day rather than an instant.
func isDateOnly(c *fiber.Ctx, name string) bool {
	return len(c.Query(name)) == len(dateLayout)
}

// principal returns the caller set by the auth middleware.
func principal(c *fiber.Ctx) domain.Principal {
	p, _ := middleware.PrincipalFrom(c)
	return p
}
