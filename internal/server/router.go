package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

  "github.com/dueday/dueday-backend/internal/handlers"
)

type RouterConfig struct {
  SyncHandler *handlers.SyncHandler
  TaskHandler *handlers.TaskHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()
  router.Use(otelgin.Middleware("dueday-backend"))

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    api.POST("/sync/run", cfg.SyncHandler.TriggerSync)
    api.GET("/syncruns/latest", cfg.SyncHandler.GetLatestRun)
    api.GET("/users/:user_id/tasks", cfg.TaskHandler.GetUserTasks)
  }

  return router
}
