package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"taskdesk/internal/app"
)

const stopTimeout = 10 * time.Second

func newRunCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the notification daemon",
		Long:  "Run every enabled surface and the overdue watcher until SIGINT or SIGTERM. SIGHUP re-reads the config and checks for overdue tasks.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(app.Options{
				ConfigPath: g.configPath,
				Mode:       app.ModeDaemon,
				Out:        cmd.OutOrStdout(),
				LogLevel:   g.logLevel,
			})
			if err != nil {
				return err
			}

			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(sigs)

			return serve(cmd.Context(), a, sigs)
		},
	}
}

// serve starts a and blocks until a stop signal, a fatal error or ctx ends.
func serve(ctx context.Context, a *app.App, sigs <-chan os.Signal) error {
	if err := a.Start(ctx); err != nil {
		stop(a)
		return err
	}

	reason := app.StopUnknown
wait:
	for {
		select {
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				a.Logger().Info("SIGHUP received; refreshing")
				a.Refresh(ctx)
				continue
			case syscall.SIGTERM:
				reason = app.StopSIGTERM
			default:
				reason = app.StopSIGINT
			}
			break wait
		case <-a.Done():
			reason = app.StopFatalError
			if a.Err() == nil {
				reason = app.StopAppStop
			}
			break wait
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		return err
	}
	return a.Err()
}
