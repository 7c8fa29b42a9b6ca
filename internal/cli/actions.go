package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pratik-mahalle/fleetfix/pkg/client"
)

func newActionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "actions",
		Aliases: []string{"action"},
		Short:   "Manage remediation actions",
	}

	cmd.AddCommand(newActionsCreateCmd())
	cmd.AddCommand(newActionsListCmd())
	cmd.AddCommand(newActionsGetCmd())
	cmd.AddCommand(newActionsApproveCmd())
	cmd.AddCommand(newActionsRejectCmd())
	cmd.AddCommand(newActionsHistoryCmd())
	cmd.AddCommand(newActionsSummaryCmd())

	return cmd
}

// parseParams turns key=value pairs into action parameters. Values that parse
// as JSON (numbers, booleans, quoted strings) keep their JSON type.
func parseParams(pairs []string) (map[string]interface{}, error) {
	params := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", p)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			params[key] = decoded
			continue
		}
		params[key] = value
	}
	return params, nil
}

func newActionsCreateCmd() *cobra.Command {
	var hostID, actionType, originKind, originRef string
	var params []string
	var notify string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Queue a remediation action for a host",
		Example: `  fleetfixctl actions create --host web-01 --type restart-service --param service=nginx
  fleetfixctl actions create --host db-02 --type clear-logs --param path=/var/log --origin alert --origin-ref disk-91`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := parseParams(params)
			if err != nil {
				return err
			}

			req := client.CreateActionRequest{
				HostID:     hostID,
				ActionType: actionType,
				Parameters: parameters,
			}
			if originKind != "" {
				req.Origin = &client.Origin{Kind: originKind, Ref: originRef}
			}
			if notify != "" {
				b, err := strconv.ParseBool(notify)
				if err != nil {
					return fmt.Errorf("invalid --notify-on-success: %w", err)
				}
				req.NotifyOnSuccess = &b
			}

			action, err := apiClient.CreateAction(cmd.Context(), req)
			if err != nil {
				if client.IsConflict(err) {
					return fmt.Errorf("an equivalent action is already in flight for %s: %w", hostID, err)
				}
				return fmt.Errorf("failed to create action: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), action)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Action %s created (%s)\n", action.ID, action.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&hostID, "host", "", "target host ID")
	cmd.Flags().StringVar(&actionType, "type", "", "action type (see 'fleetfixctl whitelist')")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&originKind, "origin", "", "origin kind: user, alert or system")
	cmd.Flags().StringVar(&originRef, "origin-ref", "", "origin reference, e.g. an alert ID")
	cmd.Flags().StringVar(&notify, "notify-on-success", "", "notify on successful completion (true/false)")
	_ = cmd.MarkFlagRequired("host")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newActionsListCmd() *cobra.Command {
	var filter client.ActionFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List remediation actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = strings.ToUpper(filter.Status)
			page, err := apiClient.ListActions(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("failed to list actions: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), page)
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No actions found.")
				return nil
			}

			table := NewTable(cmd.OutOrStdout(), "ID", "HOST", "TYPE", "STATUS", "APPROVED BY", "CREATED")
			for _, a := range page.Items {
				table.AddRow(
					a.ID,
					a.HostID,
					a.ActionType,
					formatStatus(a.Status),
					orDash(a.ApprovedBy),
					formatTime(&a.CreatedAt),
				)
			}
			table.Render()
			fmt.Fprintf(cmd.OutOrStdout(), "\nShowing %d of %d\n", len(page.Items), page.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.HostID, "host", "", "filter by host ID")
	cmd.Flags().StringVar(&filter.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filter.ActionType, "type", "", "filter by action type")
	cmd.Flags().IntVar(&filter.Limit, "limit", 0, "page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "page offset")

	return cmd
}

func newActionsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <action-id>",
		Short: "Show a remediation action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := apiClient.GetAction(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get action: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), action)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:          %s\n", action.ID)
			fmt.Fprintf(out, "Host:        %s\n", action.HostID)
			fmt.Fprintf(out, "Type:        %s\n", action.ActionType)
			fmt.Fprintf(out, "Status:      %s\n", formatStatus(action.Status))
			if len(action.Parameters) > 0 {
				raw, _ := json.Marshal(action.Parameters)
				fmt.Fprintf(out, "Parameters:  %s\n", raw)
			}
			if action.Origin != nil {
				fmt.Fprintf(out, "Origin:      %s %s\n", action.Origin.Kind, action.Origin.Ref)
			}
			if action.ApprovedBy != "" {
				fmt.Fprintf(out, "Approved by: %s at %s\n", action.ApprovedBy, formatTime(action.ApprovedAt))
			}
			if action.RejectionReason != "" {
				fmt.Fprintf(out, "Rejected:    %s\n", action.RejectionReason)
			}
			if action.FailureKind != "" {
				fmt.Fprintf(out, "Failure:     %s\n", action.FailureKind)
			}
			if len(action.Result) > 0 {
				fmt.Fprintf(out, "Result:      %s\n", truncate(string(action.Result), 200))
			}
			if len(action.Error) > 0 {
				fmt.Fprintf(out, "Error:       %s\n", truncate(string(action.Error), 200))
			}
			fmt.Fprintf(out, "Created:     %s\n", formatTime(&action.CreatedAt))
			fmt.Fprintf(out, "Dispatched:  %s\n", formatTime(action.DispatchedAt))
			fmt.Fprintf(out, "Completed:   %s\n", formatTime(action.CompletedAt))
			return nil
		},
	}
}

func newActionsApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <action-id>",
		Short: "Approve a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := apiClient.ApproveAction(cmd.Context(), args[0])
			if err != nil {
				if client.IsStateError(err) {
					return fmt.Errorf("action %s is no longer pending: %w", args[0], err)
				}
				return fmt.Errorf("failed to approve action: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Action %s approved by %s\n", action.ID, action.ApprovedBy)
			return nil
		},
	}
}

func newActionsRejectCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "reject <action-id>",
		Short: "Reject a pending action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := apiClient.RejectAction(cmd.Context(), args[0], reason)
			if err != nil {
				if client.IsStateError(err) {
					return fmt.Errorf("action %s is no longer pending: %w", args[0], err)
				}
				return fmt.Errorf("failed to reject action: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Action %s rejected\n", action.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the action was rejected")
	return cmd
}

func newActionsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "history <action-id>",
		Aliases: []string{"audit"},
		Short:   "Show the audit trail of an action",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := apiClient.ActionHistory(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get history: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), records)
			}

			table := NewTable(cmd.OutOrStdout(), "SEQ", "FROM", "TO", "ACTOR", "AT", "NOTE")
			for _, r := range records {
				table.AddRow(
					strconv.Itoa(r.Seq),
					orDash(r.FromStatus),
					r.ToStatus,
					r.Actor,
					formatTime(&r.Timestamp),
					truncate(r.Note, 60),
				)
			}
			table.Render()
			return nil
		},
	}
}

// summaryOrder lists statuses in lifecycle order for display.
var summaryOrder = []string{
	client.StatusPending,
	client.StatusApproved,
	client.StatusExecuting,
	client.StatusCompleted,
	client.StatusFailed,
	client.StatusRejected,
}

func newActionsSummaryCmd() *cobra.Command {
	var hostID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Count actions per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary, err := apiClient.ActionSummary(cmd.Context(), hostID)
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}

			if !isTable() {
				return printOutput(cmd.OutOrStdout(), summary)
			}

			table := NewTable(cmd.OutOrStdout(), "STATUS", "COUNT")
			for _, s := range summaryOrder {
				table.AddRow(s, strconv.FormatInt(summary.Counts[s], 10))
			}
			table.AddRow("TOTAL", strconv.FormatInt(summary.Total, 10))
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&hostID, "host", "", "limit to one host")
	return cmd
}
