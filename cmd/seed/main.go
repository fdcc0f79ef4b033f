// Command main fills the report database with demo data.
package main

import (
	"context"
	"flag"
	"log"
	"sort"
	"time"

	"casedesk/internal/config"
	"casedesk/internal/database"
	"casedesk/internal/models"
	"casedesk/internal/seed"
	"casedesk/internal/server"
)

func main() {
	owners := flag.Int("owners", 5, "Number of report owners")
	reviewers := flag.Int("reviewers", 2, "Number of supervisors deciding reviews")
	perOwner := flag.Int("reports", 8, "Reports per owner")
	withAttachments := flag.Bool("attachments", true, "Upload a demo attachment to some reports")
	shouldClean := flag.Bool("clean", true, "Remove existing reports before seeding")
	dryRun := flag.Bool("dry-run", false, "Log what would be created without writing")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 picks one)")
	flag.Parse()

	log.Println("Report Seeder")
	log.Println("=============")
	log.Printf("Target: %d owners x %d reports, %d reviewers, clean=%v dry-run=%v\n",
		*owners, *perOwner, *reviewers, *shouldClean, *dryRun)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close(db) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	files, err := server.NewFileStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open attachment storage: %v", err)
	}

	s := seed.NewSeeder(db, files, seed.Options{
		Owners:          *owners,
		Reviewers:       *reviewers,
		ReportsPerOwner: *perOwner,
		WithAttachments: *withAttachments,
		DryRun:          *dryRun,
		RandSeed:        *randSeed,
	})

	if *shouldClean && !*dryRun {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	summary, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d reports and %d attachments", summary.Reports, summary.Attachments)
	statuses := make([]string, 0, len(summary.ByStatus))
	for status := range summary.ByStatus {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		log.Printf("  %-10s %d", status, summary.ByStatus[models.ReportStatus(status)])
	}
}
