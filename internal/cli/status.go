package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show hub health and queue summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			health := "ok"
			if err := apiClient.Ping(ctx); err != nil {
				health = "unreachable: " + err.Error()
			}
			summary, sumErr := apiClient.ActionSummary(ctx, "")
			hosts, hostErr := apiClient.ListHosts(ctx, client.ListOptions{Limit: 100})

			if !isTable() {
				result := map[string]interface{}{"health": health}
				if sumErr == nil {
					result["actions"] = summary
				}
				if hostErr == nil {
					result["hosts"] = hosts.Total
				}
				return printOutput(out, result)
			}

			fmt.Fprintln(out, "fleetfix hub")
			fmt.Fprintln(out, strings.Repeat("=", 40))
			fmt.Fprintf(out, "  Health:     %s\n", health)
			if hostErr != nil {
				fmt.Fprintf(out, "  Hosts:      (error: %v)\n", hostErr)
			} else {
				paused := 0
				for _, h := range hosts.Items {
					if h.IsPaused {
						paused++
					}
				}
				fmt.Fprintf(out, "  Hosts:      %d registered (%d paused)\n", hosts.Total, paused)
			}
			if sumErr != nil {
				fmt.Fprintf(out, "  Actions:    (error: %v)\n", sumErr)
				return nil
			}
			fmt.Fprintf(out, "  Actions:    %d total\n", summary.Total)
			for _, s := range summaryOrder {
				if n := summary.Counts[s]; n > 0 {
					fmt.Fprintf(out, "    %-10s %d\n", s, n)
				}
			}
			return nil
		},
	}
}
