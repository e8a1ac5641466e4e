package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"gestionlearn.com/internal/api/middleware"
	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/engine"
)

func NewServer(cfg *config.Config, eng *engine.Engine) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: cfg.Server.AppName,
		// 所有未处理的错误统一走 JSON 信封
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return handleError(c, err)
		},
	})

	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.ClientOrigins, ","),
		AllowCredentials: true,
	}))
	app.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	NewRouter(app, cfg, eng).RegisterRoutes()
	return app
}
