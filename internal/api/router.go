package api

import (
	"github.com/gofiber/fiber/v2"

	"gestionlearn.com/internal/api/middleware"
	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/constants"
	"gestionlearn.com/internal/engine"
	"gestionlearn.com/internal/infra"
)

// Router 负责注册所有路由
type Router struct {
	app    *fiber.App
	cfg    *config.Config
	eng    *engine.Engine
	router fiber.Router // /api group
}

func NewRouter(app *fiber.App, cfg *config.Config, eng *engine.Engine) *Router {
	return &Router{
		app: app,
		cfg: cfg,
		eng: eng,
	}
}

// RegisterRoutes 注册所有业务路由
func (r *Router) RegisterRoutes() {
	// 1. 初始化各个 Handler
	authHandler := NewAuthHandler(r.eng.GetAuthService(), r.cfg.Server.CookieSecure)
	userHandler := NewUserHandler(r.eng.GetUserService())
	departmentHandler := NewDepartmentHandler(r.eng.GetDepartmentService())
	courseHandler := NewCourseHandler(r.eng.GetCourseService())
	hourHandler := NewHourHandler(r.eng.GetHourService())

	// 2. 注册 WebSocket 路由 (自行校验访问令牌)
	InitWebsocket(r.app, r.eng.GetTokenManager(), r.eng.GetWebSocketHub())

	// 3. 注册公开路由 (Public)
	r.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":  "ok",
			"message": "Service is healthy",
		})
	})

	r.router = r.app.Group("/api")
	r.registerPublicRoutes(authHandler, departmentHandler)

	// 4. 注册受保护的 API 路由: JWT + Casbin
	r.router.Use(
		middleware.Authenticate(r.eng.GetTokenManager()),
		middleware.CasbinMiddleware(r.eng.GetEnforcer()),
	)

	r.router.Get("/auth/me", authHandler.GetMe)
	r.registerUserRoutes(userHandler)
	r.registerDepartmentRoutes(departmentHandler)
	r.registerCourseRoutes(courseHandler)
	r.registerHourRoutes(hourHandler)
}

func (r *Router) registerPublicRoutes(auth *AuthHandler, departments *DepartmentHandler) {
	storage := infra.NewRedisStorage(r.eng.GetRedisClient(), constants.RedisKeyRateLimit)
	resetLimiter := middleware.PasswordResetRateLimiter(storage)

	authGroup := r.router.Group("/auth")
	authGroup.Post("/login", middleware.LoginRateLimiter(storage), auth.Login)
	authGroup.Post("/refresh", auth.Refresh)
	authGroup.Post("/logout", auth.Logout)
	authGroup.Post("/request-password-reset", resetLimiter, auth.RequestPasswordReset)
	authGroup.Post("/reset-password", resetLimiter, auth.ResetPassword)

	r.router.Get("/departments", departments.ListDepartments)
	r.router.Get("/departments/:id", departments.GetDepartment)
}

func (r *Router) registerUserRoutes(h *UserHandler) {
	users := r.router.Group("/users")
	users.Get("/", h.ListUsers)
	users.Post("/", h.CreateUser)
	// 固定路径必须在 /:id 之前注册
	users.Get("/students", h.ListStudents)
	users.Get("/teachers", h.ListTeachers)
	users.Get("/:id", h.GetUser)
	users.Patch("/:id", h.UpdateUser)
	users.Patch("/:id/role", h.SetRole)
	users.Patch("/:id/activate", h.SetActive)
	users.Patch("/:id/password", h.ChangePassword)
}

func (r *Router) registerDepartmentRoutes(h *DepartmentHandler) {
	departments := r.router.Group("/departments")
	departments.Post("/", h.CreateDepartment)
	departments.Patch("/:id", h.UpdateDepartment)
	departments.Delete("/:id", h.DeleteDepartment)
}

func (r *Router) registerCourseRoutes(h *CourseHandler) {
	courses := r.router.Group("/courses")
	courses.Get("/", h.ListCourses)
	courses.Post("/", h.CreateCourse)
	courses.Get("/:id", h.GetCourse)
	courses.Patch("/:id", h.UpdateCourse)
	courses.Patch("/:id/students", h.UpdateStudents)
	courses.Delete("/:id", h.DeleteCourse)
}

func (r *Router) registerHourRoutes(h *HourHandler) {
	hours := r.router.Group("/hours")
	hours.Get("/", h.ListHours)
	hours.Get("/me", h.ListHours)
	hours.Post("/", h.CreateHour)
	hours.Get("/:id", h.GetHour)
	hours.Patch("/:id", h.UpdateHour)
	hours.Delete("/:id", h.DeleteHour)
}
