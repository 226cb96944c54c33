package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wisefido-careplan/internal/config"
	"wisefido-careplan/internal/database"
	httpapi "wisefido-careplan/internal/http"
	"wisefido-careplan/internal/logger"
	"wisefido-careplan/internal/repository"
	"wisefido-careplan/internal/service"
	"wisefido-careplan/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	lg, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "wisefido-careplan")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer lg.Sync()

	// 存储：DB 不可用时退回内存 repo（本地联测用）
	var repos service.CarePlanRepos
	if cfg.DBEnabled {
		db, err := database.NewPostgresDB(&cfg.Database)
		if err != nil {
			lg.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		repos = service.CarePlanRepos{
			Plans:     repository.NewPostgresPlansRepository(db),
			Items:     repository.NewPostgresPlanItemsRepository(db),
			Schedules: repository.NewPostgresSchedulesRepository(db),
			Tasks:     repository.NewPostgresTaskInstancesRepository(db),
		}
		lg.Info("DB enabled for wisefido-careplan")
	} else {
		mem := repository.NewMemoryCarePlanStore()
		repos = service.CarePlanRepos{Plans: mem, Items: mem, Schedules: mem, Tasks: mem}
		lg.Warn("DB disabled, using in-memory care plan store")
	}

	// Redis：事件流 + 长者缓存（可选）
	var events store.EventPublisher = store.NopEventPublisher{}
	var kv store.KV
	if cfg.RedisEnabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			lg.Warn("Redis ping failed, events may be dropped", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		pingCancel()

		events = store.NewRedisEventPublisher(redisClient, cfg.EventStream, cfg.EventStreamMaxLen)
		kv = store.NewRedisKV(redisClient)
	}

	var elders service.ElderDirectory
	if cfg.ElderDirectory.BaseURL != "" {
		elders = service.NewElderDirectoryClient(cfg.ElderDirectory.BaseURL, cfg.ElderDirectory.Timeout, kv, lg)
	}

	carePlans := service.NewCarePlanService(repos, events, elders, lg)
	tasks := service.NewTaskService(repos.Tasks, events, lg)

	router := httpapi.NewRouter(lg)
	router.RegisterHealthRoutes()
	router.RegisterCarePlanRoutes(httpapi.NewCarePlanHandler(carePlans, tasks, lg))

	srv := service.NewServer(cfg.HTTP.Addr, router, lg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		lg.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		lg.Error("HTTP server stopped", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		lg.Error("Failed to stop HTTP server", zap.Error(err))
	}
}
