package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"gestionlearn.com/internal/domain"
)

// 限流参数：按路径和 IP 计数
const (
	LoginLimit  = 10
	ResetLimit  = 5
	LimitWindow = time.Minute
)

// RateLimiter counts requests per client IP in storage. A nil storage keeps
// the counters in process memory.
func RateLimiter(max int, window time.Duration, storage fiber.Storage, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		Storage:    storage,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.Path() + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return domain.NewRateLimitedError(message)
		},
	})
}

// LoginRateLimiter 登录接口限流
func LoginRateLimiter(storage fiber.Storage) fiber.Handler {
	return RateLimiter(LoginLimit, LimitWindow, storage, "Too many login attempts, please try again later")
}

// PasswordResetRateLimiter covers both reset endpoints.
func PasswordResetRateLimiter(storage fiber.Storage) fiber.Handler {
	return RateLimiter(ResetLimit, LimitWindow, storage, "Too many password reset requests, please try again later")
}
