package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"attendance/internal/repository/sqlite"
)

func main() {
	dbPath := flag.String("db", "data/attendance.db", "Database path")
	flag.Parse()

	fmt.Printf("Migrating database %s\n", *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Opening the database runs the migrations.
	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	defer db.Close()

	logs := sqlite.NewLogRepository(db)
	schedules := sqlite.NewScheduleRepository(db)

	pending, err := logs.CountUnsynced()
	if err != nil {
		log.Fatalf("Failed to read log queue: %v", err)
	}
	synced, err := logs.CountSynced()
	if err != nil {
		log.Fatalf("Failed to read log queue: %v", err)
	}
	cached, err := schedules.Count()
	if err != nil {
		log.Fatalf("Failed to read schedule cache: %v", err)
	}

	fmt.Printf("✅ Database ready\n")
	fmt.Printf("\n📊 Database Statistics:\n")
	fmt.Printf("   Pending logs: %d\n", pending)
	fmt.Printf("   Synced logs: %d\n", synced)
	fmt.Printf("   Cached schedules: %d\n", cached)
}
