package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"alphaminer/internal/config"
	"alphaminer/internal/storage"
)

func main() {
	var (
		configPath     = flag.String("config", "configs/config.yaml", "path to the configuration file")
		migrationsPath = flag.String("migrations", "migrations", "path to the migrations directory")
		up             = flag.Bool("up", false, "run pending migrations")
		down           = flag.Bool("down", false, "roll back all migrations")
		version        = flag.Bool("version", false, "print the current migration version")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	pg := cfg.Storage.Postgres
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	migrator, err := storage.NewMigrator(db, *migrationsPath)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}

	switch {
	case *up:
		if err := migrator.Up(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	case *down:
		if err := migrator.Down(); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
	case *version:
		v, err := migrator.Version()
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		fmt.Printf("Current migration version: %d\n", v)
	default:
		flag.Usage()
	}
}
