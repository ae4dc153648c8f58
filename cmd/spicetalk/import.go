package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/cli"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/ofx"
	"github.com/Veraticus/the-spice-must-talk/internal/storage"
)

const importChunkSize = 50

func importCmd() *cobra.Command {
	var (
		userID string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import ledger entries from OFX/QFX files",
		Long: `Import income and expense entries for a user from OFX or QFX files
exported from a bank. Entries already stored are skipped.`,
		Example: `  spicetalk import --user u1 ~/Downloads/checking_jan.qfx
  spicetalk import --user u1 --dry-run ~/Downloads/*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			files, err := expandFiles(args)
			if err != nil {
				return err
			}

			parser := ofx.NewParser(slog.Default())
			var entries []model.LedgerEntry
			seen := make(map[string]bool)

			for _, path := range files {
				entries = append(entries, parseFile(cmd, parser, path, userID, seen)...)
			}

			if len(entries) == 0 {
				fmt.Fprintln(out, cli.FormatWarning("No entries found in any file"))
				return nil
			}

			income := pie.Filter(entries, func(e model.LedgerEntry) bool { return e.Type == model.EntryIncome })
			fmt.Fprintf(out, "Parsed %d entries (%d income, %d expense) from %d file(s)\n",
				len(entries), len(income), len(entries)-len(income), len(files))

			if dryRun {
				fmt.Fprintln(out, cli.FormatInfo("Dry run complete, nothing saved"))
				return nil
			}

			di := newInjector(appConfig)
			defer shutdown(di)

			store, err := do.Invoke[*storage.SQLiteStorage](di)
			if err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(entries),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("[cyan][bold]Saving entries...[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)

			inserted := 0
			for _, chunk := range pie.Chunk(entries, importChunkSize) {
				n, err := store.SaveLedgerEntries(ctx, chunk)
				if err != nil {
					return fmt.Errorf("failed to save entries: %w", err)
				}
				inserted += n
				_ = bar.Add(len(chunk))
			}

			fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Imported %d new entries, skipped %d already stored",
				inserted, len(entries)-inserted)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner of the imported entries (required)")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "d", false, "parse without saving")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// expandFiles resolves glob patterns, keeping literal paths that exist.
func expandFiles(patterns []string) ([]string, error) {
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			files = append(files, matches...)
			continue
		}
		if _, err := os.Stat(pattern); err == nil {
			files = append(files, pattern)
		} else {
			slog.Warn("No files found matching pattern", "pattern", pattern)
		}
	}
	if len(files) == 0 {
		return nil, errors.New("no files found to import")
	}
	return files, nil
}

func parseFile(cmd *cobra.Command, parser *ofx.Parser, path, userID string, seen map[string]bool) []model.LedgerEntry {
	f, err := os.Open(path) //nolint:gosec // user-supplied import path
	if err != nil {
		slog.Error("Failed to open file", "file", path, "error", err)
		return nil
	}
	defer func() { _ = f.Close() }()

	stmt, err := parser.Parse(cmd.Context(), f, userID)
	if err != nil {
		slog.Error("Failed to parse OFX file", "file", path, "error", err)
		return nil
	}

	var added []model.LedgerEntry
	for _, e := range stmt.Entries {
		if seen[e.Hash] {
			continue
		}
		seen[e.Hash] = true
		added = append(added, e)
	}

	slog.Info("Processed file",
		"file", filepath.Base(path),
		"accounts", len(stmt.Accounts),
		"entries_found", len(stmt.Entries),
		"added", len(added))
	return added
}
