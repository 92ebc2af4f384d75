package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/render"
)

func previewCmd() *cobra.Command {
	var hit, context, width int
	var query string

	cmd := &cobra.Command{
		Use:   "preview <conversationId>",
		Short: "Print a conversation, optionally around one reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}

			store, err := index.Open(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			out, _, err := render.Conversation(cmd.Context(), store, args[0], render.Options{
				Hit:     hit >= 0,
				HitSeq:  hit,
				Context: context,
				Width:   width,
				Query:   query,
			})
			if err != nil {
				return err
			}

			fmt.Print(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&hit, "hit", -1, "Reply sequence number to center on")
	cmd.Flags().IntVar(&context, "context", 10, "Replies before/after hit to show (-1 = all)")
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (0 = no wrap)")
	cmd.Flags().StringVar(&query, "query", "", "Search query for keyword highlighting")

	return cmd
}
