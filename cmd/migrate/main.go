package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"receipto/pkg/config"
	"receipto/pkg/logger"
	"receipto/pkg/postgres"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_extension_uuid_ossp",
		SQL:  `CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	},
	{
		Name: "create_table_users",
		SQL: `CREATE TABLE IF NOT EXISTS users (
  id         UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  username   TEXT        NOT NULL,
  email      TEXT        NOT NULL UNIQUE,
  password   TEXT        NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_categories",
		SQL: `CREATE TABLE IF NOT EXISTS categories (
  id          UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id     UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  name        TEXT        NOT NULL,
  receipt_ids UUID[]      NOT NULL DEFAULT '{}',
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
  CONSTRAINT categories_user_name_unique UNIQUE (user_id, name)
);`,
	},
	{
		Name: "create_table_receipts",
		SQL: `CREATE TABLE IF NOT EXISTS receipts (
  id               UUID        PRIMARY KEY DEFAULT uuid_generate_v4(),
  user_id          UUID        NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  category_id      UUID        NOT NULL REFERENCES categories(id),
  transaction_date TIMESTAMPTZ NOT NULL,
  file_url         TEXT        NOT NULL,
  metadata         JSONB       NOT NULL DEFAULT '{}'::jsonb,
  created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_receipts_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_receipts_user_id ON receipts (user_id);`,
	},
	{
		Name: "create_index_receipts_category_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_receipts_category_id ON receipts (category_id);`,
	},
	{
		Name: "create_index_receipts_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_receipts_created_at ON receipts (created_at);`,
	},
	{
		Name: "create_index_categories_user_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_categories_user_id ON categories (user_id);`,
	},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	start := time.Now()
	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.Exec(ctx, step.SQL); err != nil {
			appLogger.Fatal("Migration step failed",
				zap.String("step", step.Name),
				zap.Error(err))
		}
		appLogger.Info("Migration step applied",
			zap.String("step", step.Name),
			zap.Duration("duration", time.Since(stepStart)))
	}

	appLogger.Info("Migrations complete", zap.Duration("duration", time.Since(start)))
}
