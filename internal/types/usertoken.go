package types

import (
  "time"
  "gorm.io/gorm"
  "github.com/google/uuid"
)

// Token providers understood by the sync jobs.
const (
  TokenProviderCanvas = "canvas"
  TokenProviderGoogle = "google"
)

type UserToken struct {
  gorm.Model
  ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
  UserID        uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_user_token_provider;not null" json:"user_id"`
  User          *User           `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
  Provider      string          `gorm:"uniqueIndex:idx_user_token_provider;not null;column:provider" json:"provider"`
  AccessToken   string          `gorm:"not null;column:access_token" json:"-"`
  RefreshToken  string          `gorm:"column:refresh_token" json:"-"`
  BaseURL       string          `gorm:"column:base_url" json:"base_url"`
  ExpiresAt     *time.Time      `gorm:"column:expires_at" json:"expires_at,omitempty"`
  CreatedAt     time.Time       `gorm:"not null"`
  UpdatedAt     time.Time       `gorm:"not null"`
}

func (UserToken) TableName() string {
  return "user_token"
}

func (ut *UserToken) BeforeCreate(tx *gorm.DB) error {
  if ut.ID == uuid.Nil {
    ut.ID = uuid.New()
  }
  return nil
}
