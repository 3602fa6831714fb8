// checklist-import loads the inspection checklist catalog and the
// technician roster from a YAML file into PostgreSQL.
//
// Rows are keyed on their natural key, so running the import again with an
// edited file updates the catalog in place. Items dropped from the file are
// left untouched; mark them `active: false` to retire them.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"workshop_backend/internal/seed"
	"workshop_backend/internal/stores"
	"workshop_backend/platform/config"
	"workshop_backend/platform/logger"
	"workshop_backend/platform/validator"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var filePath string
	var dryRun bool

	flagSet := pflag.NewFlagSet("checklist-import", pflag.ContinueOnError)
	flagSet.StringVarP(&filePath, "file", "f", "", "path to the seed YAML file (required)")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the file without writing to the database")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if filePath == "" {
		printHelp(flagSet)
		return errors.New("--file is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Env)

	f, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := seed.Parse(f, validator.New())
	if err != nil {
		return err
	}
	if _, err := doc.RosterTechnicians(); err != nil {
		return err
	}
	if dryRun {
		log.Info("seed file is valid", "file", filePath,
			"checklistItems", len(doc.Checklist), "technicians", len(doc.Technicians))
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	set, err := stores.OpenPostgres(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer set.Close()

	res, err := seed.Apply(ctx, doc, set.Seeder, log)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d checklist items and %d technicians from %s\n", res.ChecklistItems, res.Technicians, filePath)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: checklist-import --file <seed.yaml> [--dry-run]\n\n")
	fmt.Fprintf(os.Stderr, "Loads the checklist catalog and technician roster into PostgreSQL.\n\n")
	flagSet.PrintDefaults()
}
