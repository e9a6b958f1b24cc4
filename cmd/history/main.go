package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"detectdemo/internal/config"
	"detectdemo/internal/model"
	"detectdemo/internal/repository/sqlite"
	"detectdemo/internal/service/storage"
)

func main() {
	cfg := config.Load()
	imagesDir := flag.String("images", cfg.ImageDirectory, "Directory containing archived snapshots")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	prune := flag.Bool("prune", false, "Remove rows whose file no longer exists")
	flag.Parse()

	fmt.Printf("Indexing snapshots from %s into database %s\n", *imagesDir, *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	repo := sqlite.NewSnapshotRepository(db)

	files, err := os.ReadDir(*imagesDir)
	if err != nil {
		log.Fatalf("Failed to read images directory: %v", err)
	}

	indexed, present, skipped := 0, 0, 0
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".jpg" {
			continue
		}

		timestamp, origin, uid, err := storage.ParseFileName(file.Name())
		if err != nil {
			log.Printf("⚠️  Skipping %s: %v", file.Name(), err)
			skipped++
			continue
		}

		exists, err := repo.Exists(file.Name())
		if err != nil {
			log.Fatalf("Failed to query database: %v", err)
		}
		if exists {
			present++
			continue
		}

		info, err := file.Info()
		if err != nil {
			log.Printf("⚠️  Failed to get info for %s: %v", file.Name(), err)
			skipped++
			continue
		}

		if _, err := repo.Insert(&model.Snapshot{
			UID:       uid,
			Filename:  file.Name(),
			Origin:    origin,
			Timestamp: timestamp,
			FilePath:  filepath.Join(*imagesDir, file.Name()),
			FileSize:  info.Size(),
		}); err != nil {
			log.Printf("⚠️  Failed to insert %s: %v", file.Name(), err)
			skipped++
			continue
		}
		indexed++
	}

	pruned := 0
	if *prune {
		snapshots, err := repo.GetAll(nil)
		if err != nil {
			log.Fatalf("Failed to list snapshots: %v", err)
		}
		for _, s := range snapshots {
			if _, err := os.Stat(filepath.Join(*imagesDir, s.Filename)); os.IsNotExist(err) {
				if err := repo.Delete(s.ID); err != nil {
					log.Printf("⚠️  Failed to remove %s: %v", s.Filename, err)
					continue
				}
				pruned++
			}
		}
	}

	fmt.Printf("✅ Indexed %d snapshots (%d already present)\n", indexed, present)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d files (invalid format or errors)\n", skipped)
	}
	if pruned > 0 {
		fmt.Printf("🧹 Removed %d rows without a file\n", pruned)
	}

	stats, err := repo.GetStats()
	if err == nil {
		fmt.Printf("\n📊 History Statistics:\n")
		fmt.Printf("   Total snapshots: %d\n", stats.TotalSnapshots)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		fmt.Printf("   Per origin:\n")
		for origin, count := range stats.PerOrigin {
			fmt.Printf("      - %s: %d snapshots\n", origin, count)
		}
	}
}
