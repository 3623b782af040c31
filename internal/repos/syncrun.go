package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

type SyncRunRepo interface {
  Create(ctx context.Context, tx *gorm.DB, run *types.SyncRun) (*types.SyncRun, error)
  GetLatest(ctx context.Context, tx *gorm.DB, job string) (*types.SyncRun, error)
}

type syncRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSyncRunRepo(db *gorm.DB, baseLog *logger.Logger) SyncRunRepo {
  repoLog := baseLog.With("repo", "SyncRunRepo")
  return &syncRunRepo{db: db, log: repoLog}
}

func (srr *syncRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.SyncRun) (*types.SyncRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = srr.db
  }

  if run == nil {
    return nil, nil
  }
  if run.ID == uuid.Nil {
    run.ID = uuid.New()
  }

  if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
    return nil, err
  }

  return run, nil
}

func (srr *syncRunRepo) GetLatest(ctx context.Context, tx *gorm.DB, job string) (*types.SyncRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = srr.db
  }

  query := transaction.WithContext(ctx).Order("finished_at DESC")
  if job != "" {
    query = query.Where("job = ?", job)
  }

  var result types.SyncRun
  err := query.First(&result).Error
  if err != nil {
    return nil, err
  }

  return &result, nil
}
