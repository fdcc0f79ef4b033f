// Command migrate manages the casedesk report schema.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"casedesk/internal/config"
	"casedesk/internal/database"

	"gorm.io/gorm"
)

const usageText = `usage: migrate <command> [version]

commands:
  apply             bring the schema up to date the way the server does at boot (DB_SCHEMA_MODE)
  sql               apply pending SQL migrations (postgres only)
  auto              create or alter the report tables with gorm AutoMigrate
  status            print the schema policy and the number of pending migrations
  list              list every embedded migration and whether it is applied
  rollback VERSION  run the down script of one applied migration`

var errUsage = errors.New(usageText)

func main() {
	if len(os.Args) < 2 {
		log.Fatal(errUsage)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}

	err = execute(context.Background(), db, cfg, os.Args[1:], os.Stdout)
	_ = database.Close(db)
	if err != nil {
		log.Fatal(err)
	}
}

// execute runs one migrate command against db and writes its report to out.
func execute(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch cmd := strings.ToLower(strings.TrimSpace(args[0])); cmd {
	case "apply":
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("apply schema (mode %q): %w", cfg.DBSchemaMode, err)
		}
		fmt.Fprintln(out, "schema up to date")
	case "sql":
		if cfg.DBDriver != "" && cfg.DBDriver != "postgres" {
			return fmt.Errorf("sql migrations are written for postgres, not %q; use auto", cfg.DBDriver)
		}
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		fmt.Fprintln(out, "sql migrations applied")
	case "auto":
		auto := *cfg
		auto.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, &auto); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		fmt.Fprintln(out, "report tables migrated")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status: %w", err)
		}
		fmt.Fprintf(out, "driver=%s mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d\n",
			status.Driver, status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
			len(status.AppliedVersions), len(status.PendingMigrations))
	case "list":
		return listMigrations(ctx, db, out)
	case "rollback":
		if len(args) < 2 {
			return fmt.Errorf("rollback needs a version\n\n%s", usageText)
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback %d: %w", version, err)
		}
		fmt.Fprintf(out, "rolled back migration %d\n", version)
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usageText)
	}
	return nil
}

func listMigrations(ctx context.Context, db *gorm.DB, out io.Writer) error {
	applied, err := database.NewMigrationStore(db).GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}
	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	for _, m := range database.GetMigrations() {
		state := "pending"
		if done[m.Version] {
			state = "applied"
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", m.Version, m.Name, state)
	}
	return w.Flush()
}
