package main

import (
	"log"

	"rent360-scheduling-be/internal/config"
	"rent360-scheduling-be/pkg/database"
)

func main() {
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.Open(database.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.Connection,
	})
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	log.Println("Running AutoMigrate for scheduling tables...")
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	if cfg.Database.Driver == database.DriverPostgres {
		if err := database.EnsurePostgresIndexes(db); err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("✅ Success: Database migration completed successfully via GORM.")
}
