package repos

import (
  "context"
  "errors"
  "time"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/dueday/dueday-backend/internal/logger"
  "github.com/dueday/dueday-backend/internal/types"
)

// ErrTokenNotFound is returned when a user has no stored credentials for the
// requested provider. Sync jobs treat it as "skip this user", never as a
// storage failure.
var ErrTokenNotFound = errors.New("user token not found")

type UserTokenRepo interface {
  Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error)
  GetByUserAndProvider(ctx context.Context, tx *gorm.DB, userID uuid.UUID, provider string) (*types.UserToken, error)
  GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error)
  Rotate(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error
  FullDeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error
}

type userTokenRepo struct {
  db          *gorm.DB
  log         *logger.Logger
}

func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
  repoLog := baseLog.With("repo", "UserTokenRepo")
  return &userTokenRepo{db: db, log: repoLog}
}

func (utr *userTokenRepo) Create(ctx context.Context, tx *gorm.DB, userTokens []*types.UserToken) ([]*types.UserToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = utr.db
  }

  if len(userTokens) == 0 {
    return []*types.UserToken{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&userTokens).Error; err != nil {
    return nil, err
  }

  return userTokens, nil
}

func (utr *userTokenRepo) GetByUserAndProvider(ctx context.Context, tx *gorm.DB, userID uuid.UUID, provider string) (*types.UserToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = utr.db
  }

  var result types.UserToken

  err := transaction.WithContext(ctx).
    Where("user_id = ? AND provider = ?", userID, provider).
    First(&result).Error
  if err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, ErrTokenNotFound
    }
    return nil, err
  }

  return &result, nil
}

func (utr *userTokenRepo) GetByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) ([]*types.UserToken, error) {
  transaction := tx
  if transaction == nil {
    transaction = utr.db
  }

  var results []*types.UserToken

  if len(userIDs) == 0 {
    return results, nil
  }

  if err := transaction.WithContext(ctx).
    Where("user_id IN ?", userIDs).
    Find(&results).Error; err != nil {
    return nil, err
  }

  return results, nil
}

// Rotate overwrites the stored credentials in place. Used when an upstream
// fetch hands back a refreshed token mid-cycle; the cycle persists it before
// finishing so the next run starts from the fresh credentials.
func (utr *userTokenRepo) Rotate(ctx context.Context, tx *gorm.DB, tokenID uuid.UUID, accessToken, refreshToken string, expiresAt *time.Time) error {
  transaction := tx
  if transaction == nil {
    transaction = utr.db
  }

  updates := map[string]interface{}{
    "access_token": accessToken,
    "updated_at":   time.Now().UTC(),
  }
  if refreshToken != "" {
    updates["refresh_token"] = refreshToken
  }
  if expiresAt != nil {
    updates["expires_at"] = expiresAt
  }

  return transaction.WithContext(ctx).
    Model(&types.UserToken{}).
    Where("id = ?", tokenID).
    Updates(updates).Error
}

func (utr *userTokenRepo) FullDeleteByUserIDs(ctx context.Context, tx *gorm.DB, userIDs []uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = utr.db
  }

  if len(userIDs) == 0 {
    return nil
  }

  if err := transaction.WithContext(ctx).
    Unscoped().
    Where("user_id IN (?)", userIDs).
    Delete(&types.UserToken{}).Error; err != nil {
    return err
  }

  return nil
}
