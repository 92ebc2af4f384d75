package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/search"
	"github.com/Zuo-Peng/imlog/internal/tui"
)

func listCmd() *cobra.Command {
	var account, since string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List imported conversations, newest first",
		Long: `Opens a browser over all imported conversations when stdout is a terminal;
type to search. Otherwise prints TSV:
  conversationId, startedAt, local, remote, conference, replies`,
		Args: cobra.NoArgs,
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

			if term.IsTerminal(int(os.Stdout.Fd())) {
				return tui.BrowseList(cmd.Context(), store, search.Options{
					Account: account,
					Since:   sinceT,
					Limit:   limit,
				})
			}

			convs, err := store.Conversations(cmd.Context(), index.Filter{
				Account: account,
				Since:   sinceT,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			for _, c := range convs {
				kind := "chat"
				if c.IsConference {
					kind = "conference"
				}
				fmt.Printf("%s\t%s\t%s/%s\t%s/%s\t%s\t%d\n",
					c.ID,
					c.StartedAt.Format("2006-01-02 15:04"),
					c.LocalService, c.LocalAccount,
					c.RemoteService, c.RemoteAccount,
					kind,
					c.Replies,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Only conversations with this local or remote account")
	cmd.Flags().StringVar(&since, "since", "", "Only conversations started since date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Max results (0 = no limit)")

	return cmd
}
