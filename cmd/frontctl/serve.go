package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/frontctl/observe"
	"github.com/jonwraymond/frontctl/transport"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve requests over HTTP",
		Long: `Serves /r/{request} and /?request={request}, plus /healthz, /readyz and
/health. /metrics is mounted when the prometheus metrics exporter is selected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), c.server.ShutdownTimeout)
				defer cancel()
				if err := a.Close(shutdownCtx); err != nil {
					a.Logger.Error(shutdownCtx, "close", observe.F("error", err))
				}
			}()

			handler, err := a.Handler()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = c.server.Addr
			}
			srv := transport.NewServer(transport.ServerConfig{
				Addr:            addr,
				ShutdownTimeout: c.server.ShutdownTimeout,
				Sessions:        a.Sessions,
			}, handler, a.Logger)
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default $FRONTCTL_ADDR or :8080)")
	return cmd
}
