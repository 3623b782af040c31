package handlers

import (
  "context"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/services"
)

func HealthCheck(c *gin.Context) {
  c.String(http.StatusOK, "ok")
}

type SyncHandler struct {
  log      *logger.Logger
  batch    services.SyncBatchService
  syncRuns repos.SyncRunRepo
}

func NewSyncHandler(log *logger.Logger, batch services.SyncBatchService, syncRuns repos.SyncRunRepo) *SyncHandler {
  return &SyncHandler{log: log.With("handler", "SyncHandler"), batch: batch, syncRuns: syncRuns}
}

// TriggerSync kicks off a batch run outside the schedule. The batch runs in
// the background; callers poll /api/syncruns/latest for the outcome.
func (sh *SyncHandler) TriggerSync(c *gin.Context) {
  go func() {
    // Detached from the request context: the batch outlives the response.
    reports := sh.batch.RunAll(context.Background())
    for _, r := range reports {
      sh.log.Info("Manual sync batch finished", "job", r.Job, "succeeded", r.Succeeded, "failed", r.Failed)
    }
  }()
  c.JSON(http.StatusAccepted, gin.H{"status": "sync started"})
}

func (sh *SyncHandler) GetLatestRun(c *gin.Context) {
  job := c.Query("job")
  run, err := sh.syncRuns.GetLatest(c.Request.Context(), nil, job)
  if err != nil {
    c.JSON(http.StatusNotFound, gin.H{"error": "no sync runs recorded"})
    return
  }
  c.JSON(http.StatusOK, run)
}
