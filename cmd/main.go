package main

import (
  "context"
  "fmt"
  "os"
  "time"

  redisclient "github.com/dueday/dueday-backend/internal/clients/redis"
  "github.com/dueday/dueday-backend/internal/db"
  "github.com/dueday/dueday-backend/internal/handlers"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/observability"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/server"
  "github.com/dueday/dueday-backend/internal/services"
  "github.com/dueday/dueday-backend/internal/utils"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Tracing
  shutdownTracing := observability.InitTracing(context.Background(), log, observability.TracingConfig{
    ServiceName: "dueday-backend",
    Environment: logMode,
  })
  if shutdownTracing != nil {
    defer func() { _ = shutdownTracing(context.Background()) }()
  }

  // Env
  log.Info("Loading environment variables from main...")
  syncIntervalMin := utils.GetEnvAsInt("SYNC_INTERVAL_MINUTES", 30, log)
  syncOnStart := utils.GetEnvAsBool("SYNC_ON_START", false, log)

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Error("Auto migration failed", "error", err)
    os.Exit(1)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  userTokenRepo := repos.NewUserTokenRepo(thePG, log)
  taskRepo := repos.NewTaskRepo(thePG, log)
  syncRunRepo := repos.NewSyncRunRepo(thePG, log)

  // Redis lease (optional, single-instance deployments run without it)
  var syncLocker redisclient.SyncLocker
  if locker, err := redisclient.NewSyncLocker(log); err != nil {
    log.Warn("Sync lease disabled, running without redis", "error", err)
  } else {
    syncLocker = locker
    defer locker.Close()
  }

  // Services
  log.Info("Setting up Services from main...")
  snapshotStore, err := services.NewSnapshotStore(log)
  if err != nil {
    log.Error("Could not init SnapshotStore", "error", err)
    os.Exit(1)
  }
  openaiClient, err := services.NewOpenAIClient(log)
  if err != nil {
    log.Error("Could not init OpenAIClient", "error", err)
    os.Exit(1)
  }
  canvasClient := services.NewCanvasClient(log)
  gmailClient, err := services.NewGmailClient(log)
  if err != nil {
    log.Error("Could not init GmailClient", "error", err)
    os.Exit(1)
  }
  assigner := services.NewStableIDAssigner(log)
  enricher := services.NewTaskEnrichmentService(log, openaiClient)
  taskWriter := services.NewTaskUpsertWriter(log, taskRepo)

  canvasSync := services.NewCanvasSyncService(log, userTokenRepo, snapshotStore, canvasClient, assigner, enricher, taskWriter)
  mailSync := services.NewMailSyncService(log, userTokenRepo, snapshotStore, gmailClient, assigner, enricher, taskWriter)
  batchService := services.NewSyncBatchService(log, userRepo, syncRunRepo, syncLocker, canvasSync, mailSync)

  // Scheduler
  go func() {
    interval := time.Duration(syncIntervalMin) * time.Minute
    log.Info("Sync scheduler starting", "interval", interval.String())
    if syncOnStart {
      batchService.RunAll(context.Background())
    }
    ticker := time.NewTicker(interval)
    defer ticker.Stop()
    for range ticker.C {
      batchService.RunAll(context.Background())
    }
  }()

  // Handlers
  log.Info("Setting up handlers from main...")
  syncHandler := handlers.NewSyncHandler(log, batchService, syncRunRepo)
  taskHandler := handlers.NewTaskHandler(log, taskRepo)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    SyncHandler: syncHandler,
    TaskHandler: taskHandler,
  })

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Warn("Server failed", "error", err)
  }
}
