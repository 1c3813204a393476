package main

import (
	"errors"
	"log"
	"os"

	"github.com/bajrang-5734/Multiplayer-Quiz-Battle/config"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Usage: migrate [up|down]. Defaults to up.
func main() {
	log.SetPrefix("[MCQ] ")
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Printf("failed to load .env: %v", err)
	}

	m, err := migrate.New("file://db/migrations", databaseURL())
	if err != nil {
		log.Fatalf("migration setup failed: %v", err)
	}
	defer m.Close()

	direction := "up"
	if len(os.Args) > 1 {
		direction = os.Args[1]
	}
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		log.Fatalf("unknown direction %q, want up or down", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Printf("database migrations applied (%s)", direction)
}

// databaseURL prefers DATABASE_URL and falls back to the DB_* settings.
func databaseURL() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return cfg.DatabaseURL()
}
