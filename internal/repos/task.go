package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

type TaskRepo interface {
  // InsertIgnore creates the task unless a row with the same
  // (user_id, external_ref) already exists. Returns true when a new row was
  // written. Tasks without an external ref are always inserted.
  InsertIgnore(ctx context.Context, tx *gorm.DB, task *types.Task) (bool, error)
  GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Task, error)
  GetByUserAndExternalRefs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, externalRefs []string) ([]*types.Task, error)
}

type taskRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTaskRepo(db *gorm.DB, baseLog *logger.Logger) TaskRepo {
  repoLog := baseLog.With("repo", "TaskRepo")
  return &taskRepo{db: db, log: repoLog}
}

func (tr *taskRepo) InsertIgnore(ctx context.Context, tx *gorm.DB, task *types.Task) (bool, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  if task == nil {
    return false, nil
  }
  if task.ID == uuid.Nil {
    task.ID = uuid.New()
  }

  // Insert-if-absent: conflicts on the (user_id, external_ref) unique index
  // collapse to a no-op instead of an error, so re-running a delta is safe.
  result := transaction.WithContext(ctx).
    Clauses(clause.OnConflict{
      Columns:   []clause.Column{{Name: "user_id"}, {Name: "external_ref"}},
      DoNothing: true,
    }).
    Create(task)
  if result.Error != nil {
    return false, result.Error
  }

  return result.RowsAffected > 0, nil
}

func (tr *taskRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.Task, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var results []*types.Task

  if len(userIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("user_id IN ?", userIDs).
    Order("due_date ASC NULLS LAST").
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

func (tr *taskRepo) GetByUserAndExternalRefs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, externalRefs []string) ([]*types.Task, error) {
  transaction := tx
  if transaction == nil {
    transaction = tr.db
  }

  var results []*types.Task

  if len(externalRefs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("user_id = ? AND external_ref IN ?", userID, externalRefs).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}
