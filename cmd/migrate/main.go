// Command migrate applies or rolls back the embedded schema migrations.
// Usage: migrate <up|down [steps]|version>
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	infraconfig "github.com/jonesrussell/setlist/infrastructure/config"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/retry"
	"github.com/jonesrussell/setlist/internal/config"
	"github.com/jonesrussell/setlist/internal/database"
)

// Exit codes for the migrate command.
const (
	exitSuccess = 0
	exitFailure = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down [steps]|version>")
		return exitFailure
	}

	command := os.Args[1]
	steps := 1
	switch command {
	case "up", "version":
	case "down":
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "Invalid step count: %q\n", os.Args[2])
				return exitFailure
			}
			steps = n
		}
	default:
		fmt.Fprintf(os.Stderr, "Invalid command: %q (must be \"up\", \"down\" or \"version\")\n", command)
		return exitFailure
	}

	cfg, err := config.Load(infraconfig.GetConfigPath("config.yml"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return exitFailure
	}

	log, err := infralogger.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return exitFailure
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(context.Background(), &cfg.Database, retry.DefaultConfig(), log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect: %v\n", err)
		return exitFailure
	}
	defer func() { _ = db.Close() }()

	switch command {
	case "up":
		err = database.RunMigrations(db, log)
	case "down":
		err = database.MigrateDown(db, steps, log)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = database.MigrationVersion(db)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", version, dirty)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration %s failed: %v\n", command, err)
		return exitFailure
	}

	return exitSuccess
}
