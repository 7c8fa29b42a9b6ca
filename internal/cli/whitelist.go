package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWhitelistCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whitelist",
		Short: "List the action types the hub accepts",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := apiClient.Whitelist(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to get whitelist: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), entries)
			}

			table := NewTable(cmd.OutOrStdout(), "TYPE", "COMMAND", "DESCRIPTION")
			for _, e := range entries {
				table.AddRow(e.ActionType, truncate(e.Command, 50), truncate(e.Description, 60))
			}
			table.Render()
			return nil
		},
	}
}
