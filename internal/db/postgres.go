package db

import (
  "fmt"
  "strings"
  "gorm.io/driver/postgres"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"
  "github.com/dueday/dueday-backend/internal/types"
  "github.com/dueday/dueday-backend/internal/utils"
  "github.com/dueday/dueday-backend/internal/logger"
)

type PostgresService struct {
  db *gorm.DB
  log *logger.Logger
  driver string
}

// NewPostgresService connects to Postgres, or to a local sqlite file when
// DB_DRIVER=sqlite (development convenience). The models avoid database-side
// function defaults so AutoMigrateAll produces valid DDL under both drivers;
// row UUIDs come from the BeforeCreate hooks.
func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  driver := strings.ToLower(utils.GetEnv("DB_DRIVER", "postgres", log))
  if driver == "sqlite" {
    path := utils.GetEnv("SQLITE_PATH", "dueday.db", log)
    serviceLog.Info("Connecting to sqlite...", "path", path)
    sqliteDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
    if err != nil {
      return nil, fmt.Errorf("Failed to open sqlite database: %w", err)
    }
    return &PostgresService{db: sqliteDB, log: serviceLog, driver: driver}, nil
  }

  log.Info("Loading environment variables...")
  postgresHost := utils.GetEnv("POSTGRES_HOST", "localhost", log)
  postgresPort := utils.GetEnv("POSTGRES_PORT", "5432", log)
  postgresUser := utils.GetEnv("POSTGRES_USER", "postgres", log)
  postgresPassword := utils.GetEnv("POSTGRES_PASSWORD", "", log)
  postgresName := utils.GetEnv("POSTGRES_NAME", "dueday", log)
  log.Debug("Environment variables loaded")

  dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", postgresUser, postgresPassword, postgresHost, postgresPort, postgresName)

  log.Info("Connecting to Postgres...")
  gormDB, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  return &PostgresService{db: gormDB, log: serviceLog, driver: driver}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating tables...", "driver", s.driver)
  err := s.db.AutoMigrate(
    &types.User{},
    &types.UserToken{},
    &types.Task{},
    &types.SyncRun{},
  )
  if err != nil {
    s.log.Error("Auto migration failed", "error", err)
    return err
  }
  if s.driver == "sqlite" {
    return nil
  }
  s.log.Info("Configuring foreign key relationships for postgres tables...")
  if err := s.db.Exec(`
    ALTER TABLE "user_token"
    DROP CONSTRAINT IF EXISTS "fk_user_token_user_id",
    ADD CONSTRAINT "fk_user_token_user_id"
    FOREIGN KEY ("user_id")
    REFERENCES "user"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_user_token_user_id: %w", err)
  }
  if err := s.db.Exec(`
    ALTER TABLE "task"
    DROP CONSTRAINT IF EXISTS "fk_task_user_id",
    ADD CONSTRAINT "fk_task_user_id"
    FOREIGN KEY ("user_id")
    REFERENCES "user"("id")
    ON DELETE CASCADE
  `).Error; err != nil {
    return fmt.Errorf("Failed to add fk_task_user_id: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
