package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// SyncRun records the outcome of one batch invocation: how many users were
// attempted, how many made it all the way through, and a per-user breakdown
// of failed stages. A batch always produces exactly one row, even when every
// user fails.
type SyncRun struct {
  gorm.Model
  ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  Job             string          `gorm:"not null;index;column:job" json:"job"`
  StartedAt       time.Time       `gorm:"not null;column:started_at" json:"started_at"`
  FinishedAt      time.Time       `gorm:"not null;column:finished_at" json:"finished_at"`
  UsersAttempted  int             `gorm:"not null;column:users_attempted" json:"users_attempted"`
  UsersSucceeded  int             `gorm:"not null;column:users_succeeded" json:"users_succeeded"`
  UsersFailed     int             `gorm:"not null;column:users_failed" json:"users_failed"`
  Detail          datatypes.JSON  `gorm:"type:jsonb;column:detail" json:"detail"`
  CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
  UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (SyncRun) TableName() string {
  return "sync_run"
}

func (sr *SyncRun) BeforeCreate(tx *gorm.DB) error {
  if sr.ID == uuid.Nil {
    sr.ID = uuid.New()
  }
  return nil
}
