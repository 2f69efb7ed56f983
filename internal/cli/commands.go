package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// runImport imports each statement file in turn. A file that cannot be
// read stops the command; malformed rows inside a file do not.
func (a *app) runImport(ctx context.Context, source string, paths []string) error {
	if len(paths) == 0 {
		return errors.New("import: at least one CSV file is required")
	}
	if err := a.setup("import"); err != nil {
		return err
	}

	services, closeStore, err := a.openServices()
	if err != nil {
		return err
	}
	defer closeStore()

	for _, path := range paths {
		name := source
		if name == "" {
			name = filepath.Base(path)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", path, err)
		}
		result, err := services.Imports.ImportCSV(ctx, name, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("importing %s: %w", path, err)
		}

		a.logger.Debug("import finished", slog.String("file", path), slog.Int64("run_id", result.RunID))
		PrintImportSummary(a.stdout, name, result)
	}
	return nil
}

// runAutoMatch sweeps unmatched receipts. threshold < 0 uses the configured one.
func (a *app) runAutoMatch(ctx context.Context, threshold float64) error {
	if err := a.setup("match"); err != nil {
		return err
	}
	if threshold < 0 {
		threshold = a.cfg.Matching.AutoMatchThreshold
	}

	services, closeStore, err := a.openServices()
	if err != nil {
		return err
	}
	defer closeStore()

	created, err := services.Matches.AutoMatch(ctx, threshold)
	if err != nil {
		return err
	}
	PrintAutoMatch(a.stdout, threshold, created)

	stats, err := services.Matches.Stats(ctx)
	if err != nil {
		return err
	}
	PrintStats(a.stdout, stats)
	return nil
}

func (a *app) runStats(ctx context.Context) error {
	if err := a.setup("cli"); err != nil {
		return err
	}

	services, closeStore, err := a.openServices()
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := services.Matches.Stats(ctx)
	if err != nil {
		return err
	}
	PrintStats(a.stdout, stats)
	return nil
}
