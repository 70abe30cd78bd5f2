// Package main API Server 入口
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourhub/internal/apiserver/server"
	"tourhub/internal/config"
	"tourhub/internal/mailer"
	"tourhub/internal/payment"
	"tourhub/internal/ratelimit"
	"tourhub/internal/shared/objstore"
	"tourhub/internal/shared/storage/mongostore"
	"tourhub/pkg/logging"
)

func main() {
	// 加载配置（自动加载 .env，根据 APP_ENV 选择 configs/{env}.yaml）
	cfg := config.Load()
	logger := logging.Default("api-server")

	log.Printf("Starting API Server... [env=%s]", cfg.Env)
	log.Printf("Config: %s", cfg.String())

	// 初始化 MongoDB（持久化业务数据）
	store, err := mongostore.NewStore(cfg.MongoURI, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer store.Close()
	log.Println("Connected to MongoDB")

	// 初始化 MinIO（行程图片与头像）
	objects, err := objstore.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("Failed to create object store client: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := objects.EnsureBucket(ctx); err != nil {
			log.Fatalf("Failed to ensure bucket: %v", err)
		}
		cancel()
	}
	log.Println("Connected to MinIO")

	// 初始化 SMTP 邮件
	ml, err := mailer.New(cfg.SMTP)
	if err != nil {
		log.Fatalf("Failed to create mailer: %v", err)
	}

	// 初始化 Stripe
	payments := payment.NewClient(cfg.Payment)

	// 初始化限流器（配置了 Redis 时跨实例共享窗口）
	limiter, err := ratelimit.New(cfg.RateLimit)
	if err != nil {
		log.Fatalf("Failed to create rate limiter: %v", err)
	}

	h := server.NewHandler(cfg, store, objects, ml, payments, limiter, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// 优雅关闭
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("API Server listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server stopped")
}
