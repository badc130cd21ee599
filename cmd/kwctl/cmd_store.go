package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/john-revops11/keyword-gemini-insight/internal/db"
	"github.com/john-revops11/keyword-gemini-insight/internal/ingest"
)

// migrateCmd applies the embedded schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Applies all pending schema migrations to the database named by DATABASE_URL.
Use sqlite://path for the embedded single-file store.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

// importCmd loads a keyword export into the store
var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import a keyword export (.csv, .tsv or .xlsx)",
	Long: `Reads a keyword research export, normalizes its columns and stores every
row with a keyword in one transaction. Rows without a keyword are skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func openStore(cmd *cobra.Command) (db.Store, error) {
	store, err := db.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := store.RunMigrations(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("migrations completed")
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := ingest.ReadRows(path, f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	res, err := ingest.Normalize(rows)
	if err != nil {
		return fmt.Errorf("failed to normalize %s: %w", path, err)
	}

	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.InsertKeywords(cmd.Context(), res.Records)
	if err != nil {
		return fmt.Errorf("failed to store keywords: %w", err)
	}
	logger.Info("keywords imported", zap.String("file", path), zap.Int("inserted", n), zap.Int("skipped", res.Skipped))
	fmt.Fprintf(cmd.OutOrStdout(), "Inserted %d keywords (%d skipped)\n", n, res.Skipped)
	return nil
}
