package main

import (
	"context"
	"database/sql"
	"daysim/internal/adapters/repositories"
	"daysim/internal/config"
	"daysim/internal/platform/db"
	"log"
	"strings"

	"github.com/joho/godotenv"
)

// dbtool prepares a run database: the SQLite schema and the population seed,
// plus the Postgres observation tables when DATABASE_URL is set.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	dbPath := config.Get("DAYSIM_DB_PATH", "data/daysim.db")
	seedPath := config.Get("DAYSIM_SEED_PATH", "data/seeds/population.json")

	conn, err := db.OpenSqlite(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	if err := initAndSeed(conn, seedPath); err != nil {
		log.Fatal(err)
	}

	databaseURL := config.Get("DATABASE_URL", "")
	if strings.TrimSpace(databaseURL) == "" {
		return
	}

	pg, err := db.Open(databaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pg.Close()

	log.Println("Initializing Postgres observation schema...")
	if err := repositories.InitPostgresObservationSchema(context.Background(), pg); err != nil {
		log.Fatalf("observation schema initialization failed: %v", err)
	}
	log.Println("Observation schema ready.")
}

func initAndSeed(conn *sql.DB, seedPath string) error {
	log.Println("Initializing database schema...")
	if err := repositories.InitSchema(conn); err != nil {
		log.Fatalf("schema initialization failed: %v", err)
	}
	log.Println("Schema ready.")

	log.Println("Seeding database...")
	if err := repositories.SeedFromJSON(conn, seedPath); err != nil {
		log.Fatalf("seeding failed: %v", err)
	}
	log.Println("Seeding complete.")

	return nil
}
