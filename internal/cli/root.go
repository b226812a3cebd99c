package cli

import (
	"context"

	"github.com/spf13/cobra"

	"taskdesk/internal/app"
)

var (
	version = "dev"
	commit  = "none"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "./taskdesk.yaml"

type globals struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	cmd := &cobra.Command{
		Use:           "taskdesk",
		Short:         "Task manager companion with toast notifications",
		Long:          "taskdesk talks to the task server and reports every outcome as a toast on the terminal, in the browser or on Telegram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&g.configPath, "config", DefaultConfigPath, "Path to the YAML or JSON config file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newToggleCmd(g))
	cmd.AddCommand(newExportCmd(g))
	cmd.AddCommand(newExportChartsCmd(g))
	cmd.AddCommand(newRemindCmd(g))
	cmd.AddCommand(newOverdueCmd(g))
	cmd.AddCommand(newNotifyCmd(g))
	return cmd
}

func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// oneShot builds an app that prints toasts once to the command's output.
// The caller must Stop it.
func (g *globals) oneShot(cmd *cobra.Command) (*app.App, error) {
	return app.New(app.Options{
		ConfigPath: g.configPath,
		Mode:       app.ModeOneShot,
		Out:        cmd.OutOrStdout(),
		LogLevel:   g.logLevel,
	})
}

func stop(a *app.App) {
	_ = a.Stop(context.Background(), app.StopAppStop)
}
