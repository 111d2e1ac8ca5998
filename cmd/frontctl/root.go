package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/frontctl/config"
	"github.com/jonwraymond/frontctl/internal/app"
)

// cli carries the settings shared by every subcommand.
type cli struct {
	configPath string
	logLevel   string
	server     config.Server
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "frontctl",
		Short: "Front-controller request dispatcher",
		Long: `frontctl dispatches named requests to ordered command chains declared in a
routes file (YAML or TOML).

Process settings come from FRONTCTL_* environment variables; --config and
--log-level override FRONTCTL_CONFIG and FRONTCTL_LOG_LEVEL.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := config.LoadServer()
			if err != nil {
				return err
			}
			if c.configPath != "" {
				srv.ConfigPath = c.configPath
			}
			if c.logLevel != "" {
				srv.LogLevel = c.logLevel
				if err := srv.Validate(); err != nil {
					return err
				}
			}
			c.server = srv
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "routes file (default $FRONTCTL_CONFIG or frontctl.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "diagnostic log level: debug, info, warn or error")

	root.AddCommand(
		newServeCmd(c),
		newRunCmd(c),
		newRoutesCmd(c),
		newCheckCmd(c),
	)
	return root
}

// open wires the application, sending diagnostics to the command's
// error stream.
func (c *cli) open(ctx context.Context, cmd *cobra.Command) (*app.App, error) {
	return app.New(ctx, c.server, app.WithOutput(cmd.ErrOrStderr()))
}
