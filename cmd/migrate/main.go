package main

import (
	"flag"
	"fmt"
	"os"

	"cine-match/logging"
	"cine-match/storage"
)

func main() {
	var (
		dataPath = flag.String("data", "./data", "Path to database directory")
		command  = flag.String("cmd", "up", "Migration command: up, up-to, down, status, version, reset")
		target   = flag.Int64("to", 0, "Target version for up-to")
	)
	flag.Parse()

	sqliteStorage := storage.NewSQLiteStorage(*dataPath)
	if err := sqliteStorage.Open(); err != nil {
		logging.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer sqliteStorage.Close()

	switch *command {
	case "up":
		if err := sqliteStorage.RunMigrations(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to run migrations")
		}
		fmt.Println("Migrations completed successfully")

	case "up-to":
		if err := sqliteStorage.MigrateTo(*target); err != nil {
			logging.Fatal().Err(err).Int64("version", *target).Msg("Failed to migrate")
		}
		fmt.Printf("Migrated to version %d\n", *target)

	case "down":
		if err := sqliteStorage.RollbackMigration(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to rollback migration")
		}
		fmt.Println("Migration rolled back successfully")

	case "status":
		migrationManager := sqliteStorage.GetMigrationManager()
		if err := migrationManager.Initialize(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize migration manager")
		}
		if err := migrationManager.Status(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to get migration status")
		}

	case "version":
		version, err := sqliteStorage.GetDatabaseVersion()
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to get database version")
		}
		fmt.Printf("Database version: %d\n", version)

	case "reset":
		if err := sqliteStorage.ResetDatabase(); err != nil {
			logging.Fatal().Err(err).Msg("Failed to reset database")
		}
		fmt.Println("Database reset completed successfully")

	default:
		fmt.Printf("Unknown command: %s\n", *command)
		fmt.Println("Available commands: up, up-to, down, status, version, reset")
		os.Exit(1)
	}
}
