package main

// Manage the documents schema:
//   go run ./cmd/migrate [up|down|version]

import (
	"context"
	"fmt"
	"os"

	"polisense-backend/internal/shared/config"
	"polisense-backend/internal/shared/storage/db"
	"polisense-backend/internal/shared/telemetry"
)

func main() {
	action := "up"
	if len(os.Args) > 1 {
		action = os.Args[1]
	}
	if err := run(context.Background(), action); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"action": action, "error": err.Error()})
		os.Exit(1)
	}
}

func run(ctx context.Context, action string) error {
	switch action {
	case "up", "down", "version":
	default:
		return fmt.Errorf("unknown action %q (want up, down or version)", action)
	}

	cfg := config.Load()
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	switch action {
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var version int64
		version, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			fmt.Println(version)
			return nil
		}
	default:
		err = db.RunMigrations(ctx, sqlDB)
	}
	if err != nil {
		return err
	}
	telemetry.Info("migrate.done", map[string]any{"action": action})
	return nil
}
