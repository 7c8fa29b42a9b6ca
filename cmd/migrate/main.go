package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pratik-mahalle/fleetfix/internal/config"
	"github.com/pratik-mahalle/fleetfix/internal/db"
	"github.com/pratik-mahalle/fleetfix/migrations"
)

const usage = "usage: migrate [up|status]"

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command != "up" && command != "status" {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s database\n", cfg.Database.Driver)

	if command == "status" {
		pending, err := db.PendingMigrations(ctx, conn.DB, migrations.GetFS())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read migration status: %v\n", err)
			os.Exit(1)
		}
		if len(pending) == 0 {
			fmt.Println("Schema is up to date")
			return
		}
		for _, name := range pending {
			fmt.Printf("Pending: %s\n", name)
		}
		return
	}

	ran, err := db.RunMigrations(ctx, conn.DB, migrations.GetFS())
	for _, name := range ran {
		fmt.Printf("Executed %s\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
	if len(ran) == 0 {
		fmt.Println("No pending migrations")
		return
	}
	fmt.Printf("Applied %d migration(s)\n", len(ran))
}
