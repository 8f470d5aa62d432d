package main

import (
	"log"

	"blockforge/internal/config"
	"blockforge/internal/database"
)

// Standalone schema migration, for running ahead of a deploy instead of
// relying on the server's startup migration.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := database.Connect(cfg.GetDSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations applied and achievement catalog seeded")
}
