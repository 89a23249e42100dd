package main

import (
	"log"

	"finance-rag-be/internal/config"
	"finance-rag-be/internal/pkg/logger"
	"finance-rag-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection, sysLogger)
	if err != nil {
		log.Fatalf("Error: Failed to connect to database: %v", err)
	}

	sysLogger.Info("MIGRATE", "Creating pgvector extension and index tables", nil)
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Error: Migration failed: %v", err)
	}

	sysLogger.Info("MIGRATE", "Database migration completed", nil)
}
