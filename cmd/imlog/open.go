package main

import (
	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/imlog/internal/index"
	"github.com/Zuo-Peng/imlog/internal/open"
)

func openCmd() *cobra.Command {
	var hit int

	cmd := &cobra.Command{
		Use:   "open <conversationId>",
		Short: "Open a plain transcript of a conversation in $EDITOR at the hit reply",
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

			return open.Conversation(cmd.Context(), store, args[0], hit)
		},
	}

	cmd.Flags().IntVar(&hit, "hit", -1, "Reply sequence number to jump to")

	return cmd
}
