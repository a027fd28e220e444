package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pratik-mahalle/infrasec/internal/config"
	"github.com/pratik-mahalle/infrasec/internal/repository"
	"github.com/pratik-mahalle/infrasec/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := repository.OpenDB(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	migrationsFS, err := migrations.For(cfg.Database.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "status" {
		status, err := repository.MigrationStatus(db, migrationsFS)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migration status: %v\n", err)
			os.Exit(1)
		}

		names := make([]string, 0, len(status))
		for name := range status {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			state := "pending"
			if status[name] {
				state = "applied"
			}
			fmt.Printf("%-50s %s\n", name, state)
		}
		return
	}

	if err := repository.RunMigrations(db, migrationsFS); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("All migrations applied")
}
