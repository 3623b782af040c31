package services

import (
  "context"
  "time"

  "github.com/google/uuid"

  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/repos"
  "github.com/dueday/dueday-backend/internal/types"
)

// TaskUpsertWriter turns enriched delta items into task rows with
// insert-if-absent semantics on (user, stable ID). Items are written
// independently: one bad row is logged and skipped, never aborting the batch.
type TaskUpsertWriter interface {
  Upsert(ctx context.Context, userID uuid.UUID, source string, items []EnrichedItem, index map[string]ItemRef) int
}

type taskUpsertWriter struct {
  log   *logger.Logger
  tasks repos.TaskRepo
  now   func() time.Time
}

func NewTaskUpsertWriter(log *logger.Logger, tasks repos.TaskRepo) TaskUpsertWriter {
  return &taskUpsertWriter{
    log:   log.With("service", "TaskUpsertWriter"),
    tasks: tasks,
    now:   func() time.Time { return time.Now().UTC() },
  }
}

func (tw *taskUpsertWriter) Upsert(ctx context.Context, userID uuid.UUID, source string, items []EnrichedItem, index map[string]ItemRef) int {
  created := 0
  now := tw.now()

  for _, item := range items {
    if item.StableID == "" {
      tw.log.Warn("Skipping enriched item without stable ID", "user_id", userID)
      continue
    }
    ref, ok := index[item.StableID]
    if !ok {
      tw.log.Warn("Skipping enriched item with no originating sub-item", "user_id", userID, "stable_id", item.StableID)
      continue
    }
    title := ref.TaskTitle()
    if title == "" {
      tw.log.Warn("Skipping enriched item without resolvable title", "user_id", userID, "stable_id", item.StableID)
      continue
    }

    // The upstream due date wins; the model's suggestion only fills gaps.
    due := ref.DueAt
    if due == nil {
      due = item.DueDate
    }

    stableID := item.StableID
    task := &types.Task{
      UserID:      userID,
      Title:       title,
      Description: item.Description,
      Priority:    PriorityForDue(due, now),
      DueDate:     due,
      Source:      source,
      ExternalRef: &stableID,
    }

    inserted, err := tw.tasks.InsertIgnore(ctx, nil, task)
    if err != nil {
      tw.log.Error("Task insert failed, continuing batch", "user_id", userID, "stable_id", item.StableID, "error", err)
      continue
    }
    if inserted {
      created++
    }
  }

  return created
}
