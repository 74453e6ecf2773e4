package db

import (
  "fmt"

  "gorm.io/driver/postgres"
  "gorm.io/gorm"

  "github.com/yungbote/arbor/internal/config"
  "github.com/yungbote/arbor/internal/logger"
  "github.com/yungbote/arbor/internal/types"
)

type PostgresService struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewPostgresService(cfg config.Postgres, log *logger.Logger) (*PostgresService, error) {
  serviceLog := log.With("service", "PostgresService")

  log.Info("Connecting to Postgres...")
  db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
    DisableForeignKeyConstraintWhenMigrating: true,
  })
  if err != nil {
    log.Error("Failed to connect to Postgres", "error", err)
    return nil, fmt.Errorf("Failed to connect to Postgres: %w", err)
  }

  if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
    log.Error("Failed to enable uuid-ossp extension", "error", err)
    return nil, fmt.Errorf("Failed to enable uuid-ossp extension: %w", err)
  }

  return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) AutoMigrateAll() error {
  s.log.Info("Auto migrating postgres tables...")
  err := s.db.AutoMigrate(
    &types.Category{},
    &types.CategoryHierarchy{},
  )
  if err != nil {
    s.log.Error("Auto migration failed for postgres tables", "error", err)
    return err
  }

  s.log.Info("Configuring constraints for postgres tables...")
  if err := s.db.Exec(`
    CREATE UNIQUE INDEX IF NOT EXISTS "uq_category_sibling_name"
    ON "category" ("name", COALESCE("parent_id", '00000000-0000-0000-0000-000000000000'::uuid))
  `).Error; err != nil {
    return fmt.Errorf("Failed to add uq_category_sibling_name: %w", err)
  }
  if err := s.db.Exec(`
    CREATE INDEX IF NOT EXISTS "idx_category_hierarchy_descendant"
    ON "category_hierarchy" ("descendant_id")
  `).Error; err != nil {
    return fmt.Errorf("Failed to add idx_category_hierarchy_descendant: %w", err)
  }
  return nil
}

func (s *PostgresService) DB() *gorm.DB {
  return s.db
}
