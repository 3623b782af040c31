package types

import (
  "time"
  "gorm.io/gorm"
  "github.com/google/uuid"
)

const (
  TaskPriorityUrgent = "urgent"
  TaskPriorityHigh   = "high"
  TaskPriorityNormal = "normal"
)

const (
  TaskSourceCanvas = "canvas"
  TaskSourceGmail  = "gmail"
  TaskSourceManual = "manual"
)

// Task is the durable output of a sync cycle. ExternalRef carries the stable
// identifier of the upstream sub-item the task was generated from; the
// (user_id, external_ref) pair is unique so re-processing a delta can never
// insert the same item twice. Manually created tasks have a nil ExternalRef
// and are exempt.
type Task struct {
  gorm.Model
  ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  UserID        uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_task_user_external_ref;not null" json:"user_id"`
  User          *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Title         string          `gorm:"not null;column:title" json:"title"`
  Description   string          `gorm:"column:description" json:"description"`
  Priority      string          `gorm:"not null;default:'normal';column:priority" json:"priority"`
  DueDate       *time.Time      `gorm:"column:due_date" json:"due_date,omitempty"`
  Source        string          `gorm:"not null;default:'manual';column:source" json:"source"`
  ExternalRef   *string         `gorm:"uniqueIndex:idx_task_user_external_ref;column:external_ref" json:"external_ref,omitempty"`
  Completed     bool            `gorm:"not null;default:false;column:completed" json:"completed"`
  CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
  UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string {
  return "task"
}

func (t *Task) BeforeCreate(tx *gorm.DB) error {
  if t.ID == uuid.Nil {
    t.ID = uuid.New()
  }
  return nil
}
