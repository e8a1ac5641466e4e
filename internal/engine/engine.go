package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"gestionlearn.com/internal/auth"
	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/domain"
	"gestionlearn.com/internal/event"
	"gestionlearn.com/internal/infra"
	"gestionlearn.com/internal/policy"
	"gestionlearn.com/internal/service"
)

// ResetPurgeInterval is how often expired reset codes are cleared.
const ResetPurgeInterval = time.Minute

// Engine 是一个轻量级协调器，负责：
// 1. 组装基础设施与业务服务
// 2. 启动后台进程（事件总线、Redis 事件订阅、WebSocket Hub、重置码清理）
// 3. 将领域事件推送到 WebSocket 客户端
type Engine struct {
	cfg *config.Config

	// 基础设施
	db           *gorm.DB
	rdb          *redis.Client
	websocketHub *infra.WsManager
	bus          *event.Bus
	publisher    *infra.EventPublisher
	tokens       *auth.TokenManager
	enforcer     *casbin.Enforcer
	gate         *policy.Gate

	// 业务服务
	authService       *service.AuthServiceImpl
	userService       *service.UserServiceImpl
	departmentService *service.DepartmentServiceImpl
	courseService     *service.CourseServiceImpl
	hourService       *service.HourServiceImpl

	// 上下文控制
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine 创建引擎，db 需已完成建表
func NewEngine(cfg *config.Config, db *gorm.DB, rdb *redis.Client, mailer domain.Mailer) (*Engine, error) {
	enforcer, err := auth.InitCasbin(db)
	if err != nil {
		return nil, fmt.Errorf("init casbin: %w", err)
	}

	opts := policy.Options{
		TrainerEditWindow:        cfg.Policy.TrainerEditWindow,
		EnforceTeacherDepartment: cfg.Policy.EnforceTeacherDepartment,
	}
	gate := policy.NewDefaultGate(opts)
	bus := event.NewBus(256)
	tokens := auth.NewTokenManager(cfg.JWT)

	e := &Engine{
		cfg:          cfg,
		db:           db,
		rdb:          rdb,
		websocketHub: infra.NewWsManager(),
		bus:          bus,
		publisher:    infra.NewEventPublisher(rdb, cfg.Redis.EventChannel),
		tokens:       tokens,
		enforcer:     enforcer,
		gate:         gate,

		authService:       service.NewAuthService(db, tokens, infra.NewRedisSessionStore(rdb), mailer, bus, cfg.Mail.ResetTTL),
		userService:       service.NewUserService(db, bus),
		departmentService: service.NewDepartmentService(db),
		courseService:     service.NewCourseService(db, gate, opts, bus),
		hourService:       service.NewHourService(db, gate, opts, bus),
	}
	return e, nil
}

// Start 启动引擎后台进程
func (e *Engine) Start(ctx context.Context) error {
	log.Println("Engine: Starting...")
	e.ctx, e.cancel = context.WithCancel(ctx)

	// 1. 启动 WebSocket 管理器
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.websocketHub.Start(e.ctx)
	}()

	// 2. 事件总线订阅：审计日志 + 转发到 Redis
	e.bus.Subscribe(event.Wildcard, e.auditEvent)
	e.bus.Subscribe(event.Wildcard, e.forwardEvent)

	// 3. Redis 事件订阅器 -> WebSocket 推送
	if err := infra.StartEventSubscriber(e.ctx, e.rdb, e.cfg.Redis.EventChannel, infra.NewEventDispatcher(e.websocketHub).Dispatch); err != nil {
		e.cancel()
		return fmt.Errorf("subscribe to %s: %w", e.cfg.Redis.EventChannel, err)
	}

	// 4. 定期清理过期的重置码
	e.wg.Add(1)
	go e.runResetPurgeLoop(ResetPurgeInterval)

	log.Println("Engine: Started successfully")
	return nil
}

func (e *Engine) auditEvent(_ context.Context, ev event.Event) error {
	log.Printf("Audit: %s from %s by user %d", ev.Type, ev.Source, ev.ActorID)
	return nil
}

// forwardEvent publishes a bus event on the Redis channel every instance listens to.
func (e *Engine) forwardEvent(ctx context.Context, ev event.Event) error {
	roles := make([]string, 0, len(ev.Roles))
	for _, r := range ev.Roles {
		roles = append(roles, string(r))
	}
	return e.publisher.Publish(ctx, infra.EventMessage{
		Type:      ev.Type,
		Source:    ev.Source,
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
		UserIDs:   ev.UserIDs,
		Roles:     roles,
	})
}

// runResetPurgeLoop 重置码清理循环
func (e *Engine) runResetPurgeLoop(interval time.Duration) {
	defer e.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			log.Println("Engine: Reset code purge loop stopped")
			return
		case <-ticker.C:
			n, err := e.authService.PurgeExpiredResetCodes(e.ctx)
			if err != nil {
				if e.ctx.Err() != nil {
					return
				}
				log.Printf("Engine: Failed to purge reset codes: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("Engine: Purged %d expired reset codes", n)
			}
		}
	}
}

// Stop 停止引擎，后台循环退出前会投递完队列中的事件
func (e *Engine) Stop() {
	log.Println("Engine: Stopping...")
	e.bus.Shutdown()
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	log.Println("Engine: Stopped")
}

// EnsureAdmin creates the configured bootstrap admin when no user exists.
func (e *Engine) EnsureAdmin(ctx context.Context) error {
	return e.userService.EnsureAdmin(ctx, e.cfg.Bootstrap.AdminEmail, e.cfg.Bootstrap.AdminPassword)
}

func (e *Engine) GetPostgresClient() *gorm.DB { return e.db }
func (e *Engine) GetRedisClient() *redis.Client { return e.rdb }
func (e *Engine) GetEnforcer() *casbin.Enforcer { return e.enforcer }
func (e *Engine) GetTokenManager() *auth.TokenManager { return e.tokens }

// GetWebSocketHub 返回 WebSocket 管理器
func (e *Engine) GetWebSocketHub() *infra.WsManager {
	return e.websocketHub
}

func (e *Engine) GetAuthService() domain.AuthService { return e.authService }
func (e *Engine) GetUserService() domain.UserService { return e.userService }
func (e *Engine) GetDepartmentService() domain.DepartmentService { return e.departmentService }
func (e *Engine) GetCourseService() domain.CourseService { return e.courseService }
func (e *Engine) GetHourService() domain.HourService { return e.hourService }
