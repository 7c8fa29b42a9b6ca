package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

func newHostsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hosts",
		Aliases: []string{"host"},
		Short:   "Manage registered hosts",
	}

	cmd.AddCommand(newHostsRegisterCmd())
	cmd.AddCommand(newHostsListCmd())
	cmd.AddCommand(newHostsGetCmd())
	cmd.AddCommand(newHostsMaintenanceCmd("pause", true))
	cmd.AddCommand(newHostsMaintenanceCmd("resume", false))

	return cmd
}

func newHostsRegisterCmd() *cobra.Command {
	var name, secret string

	cmd := &cobra.Command{
		Use:   "register <host-id>",
		Short: "Enroll a host with its check-in secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = promptPassword("Host secret: ")
				if confirm := promptPassword("Confirm secret: "); confirm != secret {
					return fmt.Errorf("secrets do not match")
				}
			}

			h, err := apiClient.RegisterHost(cmd.Context(), client.RegisterHostRequest{
				ID:     args[0],
				Name:   name,
				Secret: secret,
			})
			if err != nil {
				return fmt.Errorf("failed to register host: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), h)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Host %s registered\n", h.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&secret, "secret", "", "check-in secret (prompted when empty)")
	return cmd
}

func newHostsListCmd() *cobra.Command {
	var opts client.ListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered hosts",
		RunE: func(cmd *cobra.Command, args []string) error {
			page, err := apiClient.ListHosts(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("failed to list hosts: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), page)
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No hosts registered.")
				return nil
			}

			table := NewTable(cmd.OutOrStdout(), "ID", "NAME", "PAUSED", "LAST CHECK-IN")
			for _, h := range page.Items {
				table.AddRow(h.ID, orDash(h.Name), strconv.FormatBool(h.IsPaused), formatTime(h.LastCheckInAt))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "page offset")
	return cmd
}

func newHostsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <host-id>",
		Short: "Show a host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := apiClient.GetHost(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get host: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), h)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:            %s\n", h.ID)
			fmt.Fprintf(out, "Name:          %s\n", orDash(h.Name))
			fmt.Fprintf(out, "Maintenance:   %t\n", h.IsPaused)
			fmt.Fprintf(out, "Last check-in: %s\n", formatTime(h.LastCheckInAt))
			return nil
		},
	}
}

// newHostsMaintenanceCmd builds pause/resume. A paused host keeps receiving
// approved commands but new actions wait for an operator.
func newHostsMaintenanceCmd(use string, paused bool) *cobra.Command {
	short := "Pause auto-approval for a host"
	if !paused {
		short = "Resume auto-approval for a host"
	}
	return &cobra.Command{
		Use:   use + " <host-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := apiClient.SetMaintenance(cmd.Context(), args[0], paused)
			if err != nil {
				return fmt.Errorf("failed to update host: %w", err)
			}
			state := "resumed"
			if h.IsPaused {
				state = "paused"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Host %s %s\n", h.ID, state)
			return nil
		},
	}
}
