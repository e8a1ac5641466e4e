package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestionlearn.com/internal/api"
	"gestionlearn.com/internal/config"
	"gestionlearn.com/internal/engine"
	"gestionlearn.com/internal/infra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 1. 加载配置
	cfg := config.LoadConfig()

	// 2. 初始化基础设施
	// Postgres (建表在连接时完成)
	pg, err := infra.NewPostgresClient(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Redis
	rdb := infra.NewRedisClient(cfg.Redis)
	if err := infra.PingRedis(context.Background(), rdb); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Mail
	mailer := infra.NewMailer(cfg.Mail)

	// 3. 初始化引擎
	eng, err := engine.NewEngine(cfg, pg.DB, rdb, mailer)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}
	if err := eng.EnsureAdmin(ctx); err != nil {
		log.Fatalf("Failed to ensure admin user: %v", err)
	}

	// 4. 设置 Fiber 服务器
	app := api.NewServer(cfg, eng)

	// 5. 启动服务器
	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := app.Listen(cfg.Server.Port); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// 6. 优雅退出
	<-ctx.Done()
	log.Println("Shutdown signal received")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	eng.Stop()

	if sqlDB, err := pg.DB.DB(); err == nil {
		sqlDB.Close()
	}
	rdb.Close()
	log.Println("Server exited")
}
