package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"platecam/internal/config"
	"platecam/internal/repository/sqlite"
	"platecam/internal/service/archive"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	resultDir := flag.String("results", cfg.ResultDirectory, "Directory containing clip folders")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	keep := flag.Bool("keep", false, "Keep existing ledger rows instead of replacing them")
	flag.Parse()

	fmt.Printf("Rebuilding clip ledger from %s into %s\n", *resultDir, *dbPath)

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewClipRepository(db)

	packager := archive.NewPackager(*resultDir, cfg.UploadedDirName, cfg.ArchiveExtension, 0, nil, nil)
	clips, err := packager.Scan()
	if err != nil {
		log.Fatalf("Failed to scan result directory: %v", err)
	}

	if len(clips) == 0 {
		fmt.Println("No clip folders found")
		return
	}

	if !*keep {
		if err := repo.DeleteAll(); err != nil {
			log.Fatalf("Failed to clear ledger: %v", err)
		}
	}

	inserted := 0
	for i := range clips {
		if _, err := repo.Insert(&clips[i]); err != nil {
			log.Printf("⚠️  Skipping %s: %v", clips[i].Folder, err)
			continue
		}
		inserted++
	}

	fmt.Printf("✅ Recorded %d of %d clips\n", inserted, len(clips))
}
