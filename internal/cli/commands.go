package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"taskdesk/internal/actions"
	"taskdesk/internal/toast"
)

// errFailed is returned after the failure has already been shown as a toast.
var errFailed = errors.New("failed")

func newToggleCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <task-id>",
		Short: "Toggle a task between open and done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)

			before := len(a.Toasts().Active())
			state := a.Actions().Toggle(cmd.Context(), id)
			if state != actions.StateUnknown {
				fmt.Fprintf(cmd.OutOrStdout(), "task %d is now %s\n", id, state)
				return nil
			}
			// A success toast without a status is not a failure.
			if lastSeverity(a.Toasts().Active(), before) == toast.SeverityDanger {
				return fmt.Errorf("toggle task %d: %w", id, errFailed)
			}
			return nil
		},
	}
}

func newExportCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Schedule a server-side export of your data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)
			if !a.Actions().Export(cmd.Context()) {
				return fmt.Errorf("export: %w", errFailed)
			}
			return nil
		},
	}
}

func newExportChartsCmd(g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-charts <chart-dir>",
		Short: "Save the first rendered chart as " + actions.ChartFile,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)
			path := a.Actions().ExportCharts(args[0], out)
			if path == "" {
				return fmt.Errorf("export charts: %w", errFailed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "Directory the chart is written to")
	return cmd
}

func newRemindCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Ask the server to send task reminders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)
			if !a.Actions().SendReminders(cmd.Context()) {
				return fmt.Errorf("remind: %w", errFailed)
			}
			return nil
		},
	}
}

func newOverdueCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Check once for overdue tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)
			n := a.Overdue().Check(cmd.Context())
			if n < 0 {
				return fmt.Errorf("overdue check: %w", errFailed)
			}
			if n == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no overdue tasks")
			}
			return nil
		},
	}
}

func newNotifyCmd(g *globals) *cobra.Command {
	var severity string
	cmd := &cobra.Command{
		Use:   "notify <title> <body>",
		Short: "Show a toast",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sev, err := toast.ParseSeverity(severity)
			if err != nil {
				return err
			}
			a, err := g.oneShot(cmd)
			if err != nil {
				return err
			}
			defer stop(a)
			a.Toasts().Notify(args[0], args[1], sev)
			return nil
		},
	}
	cmd.Flags().StringVarP(&severity, "severity", "s", string(toast.SeverityInfo), "success, danger, warning or info")
	return cmd
}

// lastSeverity returns the severity of the newest toast shown after the
// first `before` ones, or "" when none was.
func lastSeverity(active []toast.Toast, before int) toast.Severity {
	if len(active) <= before {
		return ""
	}
	return active[len(active)-1].Severity
}
