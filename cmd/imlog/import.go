package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/imlog/internal/archive"
	"github.com/Zuo-Peng/imlog/internal/importer"
	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/tui"
)

func importCmd() *cobra.Command {
	var formatName, root, group string
	var workers int
	var dryRun, plain bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a Yahoo or Digsby archive directory into the database",
		Long: `Walks the archive root breadth-first, splits every archive file into
conversations and writes them to the database in a single transaction.
The first malformed file aborts the import and nothing is written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			format, ok := parse.ParseFormat(formatName)
			if !ok {
				return fmt.Errorf("--format: want yahoo or digsby, got %q", formatName)
			}
			if root == "" {
				root = cfg.Root(format)
			}
			if !cmd.Flags().Changed("workers") {
				workers = cfg.Workers
			}

			runJob := func(ctx context.Context, g archive.Graph, progress importer.ProgressFunc) (importer.Result, error) {
				job := importer.New(g, importer.Options{
					Format:   format,
					Root:     root,
					Policy:   cfg.Policy(),
					Workers:  workers,
					Group:    group,
					Logger:   logger,
					Progress: progress,
				})
				return job.Run(ctx)
			}

			var run tui.ImportFunc
			if dryRun {
				run = func(ctx context.Context, progress importer.ProgressFunc) (importer.Result, error) {
					return runJob(ctx, archive.NewMemory(), progress)
				}
			} else {
				store, err := index.Open(cmd.Context(), cfg.DBPath)
				if err != nil {
					return err
				}
				defer store.Close()

				run = func(ctx context.Context, progress importer.ProgressFunc) (importer.Result, error) {
					var res importer.Result
					err := store.Update(ctx, func(tx *index.Tx) error {
						var err error
						res, err = runJob(ctx, tx, progress)
						return err
					})
					return res, err
				}
			}

			fmt.Fprintf(os.Stderr, "Importing %s archive from %s\n", format, root)

			var res importer.Result
			if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
				res, err = tui.RunImport(cmd.Context(), run)
			} else {
				res, err = run(cmd.Context(), logProgress(logger))
			}
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			if dryRun {
				fmt.Fprintf(os.Stderr, "Dry run, nothing written. %s\n", res)
			} else {
				fmt.Fprintf(os.Stderr, "Done. %s\n", res)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&formatName, "format", "", "Archive format (yahoo/digsby)")
	cmd.Flags().StringVar(&root, "root", "", "Archive root directory (default from config)")
	cmd.Flags().StringVar(&group, "group", "", "Contact group for imported contacts (default \"Imported\")")
	cmd.Flags().IntVar(&workers, "workers", 1, "Files analysed concurrently (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Decode and segment without writing to the database")
	cmd.Flags().BoolVar(&plain, "plain", false, "Log progress instead of showing the progress view")
	cmd.MarkFlagRequired("format")

	return cmd
}

// logProgress logs the start and end of each phase. The scan total grows
// as directories are read, so only its start is logged.
func logProgress(logger *slog.Logger) importer.ProgressFunc {
	var phase string
	return func(p string, completed, total int) {
		if p != phase {
			phase = p
			logger.Info("phase", "name", p)
		}
		if p != importer.PhaseScanning && total > 0 && completed == total {
			logger.Info("phase complete", "name", p, "items", total)
		}
	}
}
