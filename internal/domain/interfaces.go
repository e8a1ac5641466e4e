package domain

import (
	"context"
	"time"

	"gestionlearn.com/internal/model"
)

// Principal is the authenticated caller as carried by the access token.
type Principal struct {
	ID           uint
	Role         model.Role
	DepartmentID *uint
}

// InDepartment reports whether the principal belongs to departmentID.
func (p Principal) InDepartment(departmentID uint) bool {
	return p.DepartmentID != nil && *p.DepartmentID == departmentID
}

func (p Principal) Is(roles ...model.Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// ===========================
// Credentials
// ===========================

// Session is the result of a successful login.
type Session struct {
	User             *model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthService verifies credentials and manages tokens and password resets.
type AuthService interface {
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	// Refresh issues a new access token for a valid refresh token.
	Refresh(ctx context.Context, refreshToken string) (token string, expiresAt time.Time, err error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID uint) (*model.User, error)
	// IssueResetCode never reports whether the account exists.
	IssueResetCode(ctx context.Context, email string) error
	ConsumeResetCode(ctx context.Context, email, code, newPassword string) error
	// PurgeExpiredResetCodes clears reset codes whose expiry has passed.
	PurgeExpiredResetCodes(ctx context.Context) (int64, error)
}

// ===========================
// Users
// ===========================

type CreateUserInput struct {
	Name         string
	Email        string
	Password     string
	Role         model.Role
	DepartmentID *uint
	// IsActive defaults to true.
	IsActive *bool
}

// UpdateUserInput carries optional changes; nil fields are left untouched.
type UpdateUserInput struct {
	Name         *string
	Email        *string
	Role         *model.Role
	DepartmentID *uint
	IsActive     *bool
}

type UserService interface {
	ListUsers(ctx context.Context, page, pageSize int) ([]model.User, int64, error)
	ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
	GetUser(ctx context.Context, id uint) (*model.User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*model.User, error)
	UpdateUser(ctx context.Context, id uint, input UpdateUserInput) (*model.User, error)
	SetRole(ctx context.Context, id uint, role model.Role) (*model.User, error)
	SetActive(ctx context.Context, id uint, active bool) (*model.User, error)
	ChangePassword(ctx context.Context, actor Principal, id uint, currentPassword, newPassword string) error
	// EnsureAdmin creates an admin account when no user exists yet.
	EnsureAdmin(ctx context.Context, email, password string) error
}

// ===========================
// Departments
// ===========================

type DepartmentInput struct {
	Name          *string
	Description   *string
	MainTeacherID *uint
}

type DepartmentService interface {
	ListDepartments(ctx context.Context) ([]model.Department, error)
	GetDepartment(ctx context.Context, id uint) (*model.Department, error)
	CreateDepartment(ctx context.Context, input DepartmentInput) (*model.Department, error)
	UpdateDepartment(ctx context.Context, id uint, input DepartmentInput) (*model.Department, error)
	DeleteDepartment(ctx context.Context, id uint) error
}

// ===========================
// Courses
// ===========================

type CourseInput struct {
	Title        *string
	Code         *string
	Description  *string
	DepartmentID *uint
	TeacherID    *uint
}

// EnrollmentAction selects whether students are added to or removed from a course.
type EnrollmentAction string

const (
	EnrollAdd    EnrollmentAction = "add"
	EnrollRemove EnrollmentAction = "remove"
)

type CourseService interface {
	ListCourses(ctx context.Context, actor Principal) ([]model.Course, error)
	GetCourse(ctx context.Context, actor Principal, id uint) (*model.Course, error)
	CreateCourse(ctx context.Context, actor Principal, input CourseInput) (*model.Course, error)
	UpdateCourse(ctx context.Context, actor Principal, id uint, input CourseInput) (*model.Course, error)
	UpdateStudents(ctx context.Context, actor Principal, id uint, action EnrollmentAction, studentIDs []uint) (*model.Course, error)
	DeleteCourse(ctx context.Context, actor Principal, id uint) error
}

// ===========================
// Hour entries
// ===========================

// HourFilter narrows a listing. From and To are inclusive; Before is an
// exclusive upper bound, used when the caller names a whole day.
type HourFilter struct {
	CourseID *uint
	From     *time.Time
	To       *time.Time
	Before   *time.Time
}

type CreateHourInput struct {
	CourseID    uint
	TeacherID   *uint
	Date        time.Time
	Hours       float64
	Description string
}

type UpdateHourInput struct {
	Date        *time.Time
	Hours       *float64
	Description *string
}

type HourService interface {
	// ListHours returns the entries visible to actor, newest first.
	ListHours(ctx context.Context, actor Principal, filter HourFilter) ([]model.HourEntry, error)
	GetHour(ctx context.Context, actor Principal, id uint) (*model.HourEntry, error)
	CreateHour(ctx context.Context, actor Principal, input CreateHourInput) (*model.HourEntry, error)
	UpdateHour(ctx context.Context, actor Principal, id uint, input UpdateHourInput) (*model.HourEntry, error)
	DeleteHour(ctx context.Context, actor Principal, id uint) error
}

// ===========================
// Outbound ports
// ===========================

// MailMessage is a single outgoing email.
type MailMessage struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg MailMessage) error
}

// SessionStore tracks revoked refresh sessions by token id.
type SessionStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
