package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/parse"
	"github.com/Zuo-Peng/imlog/internal/scan"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Self-check: verify archive roots, DB, FTS5, and show stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			fmt.Println("=== Roots ===")
			checkDir("Yahoo", cfg.YahooRoot)
			checkDir("Digsby", cfg.DigsbyRoot)

			fmt.Println("\n=== File Scan ===")
			files, err := scan.ScanRoots(ctx, cfg.YahooRoot, cfg.DigsbyRoot)
			if err != nil {
				fmt.Printf("  scan error: %v\n", err)
			} else {
				counts := map[parse.Format]int{}
				bad := 0
				for _, f := range files {
					counts[f.Format]++
					if _, err := parse.PathMetadata(f.Format, f.Path); err != nil {
						bad++
						if bad <= 5 {
							fmt.Printf("  layout: %v\n", err)
						}
					}
				}
				fmt.Printf("  Yahoo  .dat files:  %d\n", counts[parse.FormatYahoo])
				fmt.Printf("  Digsby .html files: %d\n", counts[parse.FormatDigsby])
				if bad > 0 {
					fmt.Printf("  Files outside the expected layout: %d (import will fail on them)\n", bad)
				}
			}

			fmt.Println("\n=== Database ===")
			fmt.Printf("  Path: %s\n", cfg.DBPath)
			if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
				fmt.Println("  Status: NOT FOUND (run 'imlog import' first)")
				return nil
			}

			store, err := index.Open(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			counts, err := store.Counts(ctx)
			if err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
			fmt.Printf("  Identities:    %d\n", counts.Identities)
			fmt.Printf("  Contacts:      %d\n", counts.Contacts)
			fmt.Printf("  Accounts:      %d\n", counts.Accounts)
			fmt.Printf("  Conversations: %d\n", counts.Conversations)
			fmt.Printf("  Replies:       %d\n", counts.Replies)

			fmt.Println("\n=== FTS5 ===")
			var ftsCount int
			err = store.Raw().QueryRowContext(ctx, "SELECT COUNT(*) FROM replies_fts").Scan(&ftsCount)
			if err != nil {
				fmt.Printf("  FTS5 error: %v\n", err)
			} else {
				fmt.Printf("  FTS5 entries: %d\n", ftsCount)
				if ftsCount == counts.Replies {
					fmt.Println("  Status: OK (synced)")
				} else {
					fmt.Printf("  Status: MISMATCH (replies=%d, fts=%d)\n", counts.Replies, ftsCount)
				}
			}

			if info, err := os.Stat(cfg.DBPath); err == nil {
				fmt.Printf("\n=== DB Size: %.1f MB ===\n", float64(info.Size())/1024/1024)
			}
			return nil
		},
	}
}

func checkDir(name, path string) {
	if info, err := os.Stat(path); err != nil {
		fmt.Printf("  %s: %s (NOT FOUND)\n", name, path)
	} else if !info.IsDir() {
		fmt.Printf("  %s: %s (NOT A DIRECTORY)\n", name, path)
	} else {
		fmt.Printf("  %s: %s (OK)\n", name, path)
	}
}
