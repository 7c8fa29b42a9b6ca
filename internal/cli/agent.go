package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

// newAgentCmd exposes the host side of the protocol. Useful for smoke tests
// and for hosts that drive check-ins from a shell script.
func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "agent",
		Short:       "Act as a host agent",
		Annotations: map[string]string{noAuthAnnotation: "true"},
	}

	cmd.AddCommand(newAgentCheckInCmd())
	return cmd
}

// parseResults reads <action-id>=<success|failure> pairs.
func parseResults(pairs []string, payload json.RawMessage) ([]client.CommandResult, error) {
	results := make([]client.CommandResult, 0, len(pairs))
	for _, p := range pairs {
		id, outcome, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid result %q, expected <action-id>=<success|failure>", p)
		}
		if outcome != client.OutcomeSuccess && outcome != client.OutcomeFailure {
			return nil, fmt.Errorf("invalid outcome %q for %s", outcome, id)
		}
		results = append(results, client.CommandResult{ActionID: id, Outcome: outcome, Payload: payload})
	}
	return results, nil
}

func newAgentCheckInCmd() *cobra.Command {
	var hostID, secret, payload string
	var results []string

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Send one heartbeat and print the returned command",
		Example: `  fleetfixctl agent checkin --host web-01
  fleetfixctl agent checkin --host web-01 --result 6f1c...=success --payload '{"exit_code":0}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("FLEETFIX_HOST_SECRET")
			}
			if secret == "" {
				secret = promptPassword("Host secret: ")
			}

			var raw json.RawMessage
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("--payload is not valid JSON")
				}
				raw = json.RawMessage(payload)
			}
			reported, err := parseResults(results, raw)
			if err != nil {
				return err
			}

			resp, err := apiClient.CheckIn(cmd.Context(), hostID, secret, reported)
			if err != nil {
				if client.IsRateLimited(err) {
					return fmt.Errorf("checking in too often: %w", err)
				}
				return fmt.Errorf("check-in failed: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			if len(reported) > 0 {
				fmt.Fprintf(out, "Results applied: %d, ignored: %d\n", resp.ResultsApplied, resp.ResultsIgnored)
			}
			if len(resp.PendingCommands) == 0 {
				fmt.Fprintln(out, "No pending commands.")
				return nil
			}
			table := NewTable(out, "ACTION", "TYPE", "COMMAND")
			for _, c := range resp.PendingCommands {
				command := c.Rendered
				if command == "" {
					command = c.Command
				}
				table.AddRow(c.ActionID, c.ActionType, command)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&hostID, "host", "", "this host's ID")
	cmd.Flags().StringVar(&secret, "secret", "", "host secret (default $FLEETFIX_HOST_SECRET)")
	cmd.Flags().StringArrayVar(&results, "result", nil, "report a result as <action-id>=<success|failure> (repeatable)")
	cmd.Flags().StringVar(&payload, "payload", "", "JSON payload attached to every reported result")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}
