package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
)

type TaskHandler struct {
  log   *logger.Logger
  tasks repos.TaskRepo
}

func NewTaskHandler(log *logger.Logger, tasks repos.TaskRepo) *TaskHandler {
  return &TaskHandler{log: log.With("handler", "TaskHandler"), tasks: tasks}
}

func (th *TaskHandler) GetUserTasks(c *gin.Context) {
  userID, err := uuid.Parse(c.Param("user_id"))
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
    return
  }
  tasks, err := th.tasks.GetByUserIDs(c.Request.Context(), nil, []uuid.UUID{userID})
  if err != nil {
    th.log.Error("Could not load tasks", "user_id", userID, "error", err)
    c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load tasks"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}
