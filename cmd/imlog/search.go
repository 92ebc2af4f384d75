package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/search"
	"github.com/Zuo-Peng/imlog/internal/tui"
)

const (
	sColorReset   = "\033[0m"
	sColorBoldRed = "\033[1;31m"
	sColorGreen   = "\033[1;32m"
	sColorDim     = "\033[2m"
)

func colorizeSnippet(snippet string) string {
	snippet = strings.ReplaceAll(snippet, ">>>", sColorBoldRed)
	snippet = strings.ReplaceAll(snippet, "<<<", sColorReset)
	return snippet
}

func searchCmd() *cobra.Command {
	var account, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Full-text search across imported replies",
		Long: `Search imported replies using FTS5 (substring match for CJK queries).
Output is TSV for fzf integration when stdout is not a terminal:
  conversationId, seq, startedAt, remote, speaker, snippet

Example:
  imlog search "$*" | fzf --ansi --delimiter='\t' --with-nth=3.. \
    --preview 'imlog preview {1} --hit {2} --context 5 --query {q}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			sinceT, err := parseSince(since)
			if err != nil {
				return err
			}

			store, err := index.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			opts := search.Options{
				Account: account,
				Since:   sinceT,
				Limit:   limit,
			}

			// interactive browser on a terminal, TSV for pipes
			if term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.Browse(cmd.Context(), store, args[0], opts)
			}

			opts.Query = args[0]
			results, err := search.Search(cmd.Context(), store, opts)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(os.Stderr, "No results found.")
				return nil
			}

			for _, r := range results {
				snippet := strings.NewReplacer("\t", " ", "\n", " ").Replace(r.Snippet)
				speaker := r.Speaker
				if speaker == "" {
					speaker = "-"
				}
				// first two fields stay plain for fzf {1} {2}
				fmt.Printf("%s\t%d\t%s%s%s\t%s%s%s\t%s\t%s\n",
					r.ConversationID,
					r.Seq,
					sColorDim, r.StartedAt, sColorReset,
					sColorGreen, r.RemoteAccount, sColorReset,
					speaker,
					colorizeSnippet(snippet),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Only conversations with this local or remote account")
	cmd.Flags().StringVar(&since, "since", "", "Only conversations started since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 100, "Max results")

	return cmd
}
