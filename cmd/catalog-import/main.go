// Command catalog-import loads accessory definitions from a JSON file into the
// accessories table, matching existing rows by slug.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"avatarShopAPI/internal/storage"
)

func main() {
	file := flag.String("file", "catalog.json", "path to the catalog JSON file")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *file, err)
	}
	defer f.Close()

	items, warnings, err := parseCatalog(f)
	if err != nil {
		log.Fatalf("Invalid catalog: %v", err)
	}
	for _, w := range warnings {
		log.Printf("Warning: %s", w)
	}
	log.Printf("Parsed %d accessories from %s", len(items), *file)
	if *dryRun {
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}
	defer pool.Close()

	store := storage.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	var created, updated int
	for i := range items {
		inserted, err := store.UpsertAccessory(ctx, &items[i])
		if err != nil {
			log.Fatalf("Import stopped: %v", err)
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}
	log.Printf("Catalog import complete: %d created, %d updated", created, updated)
}
