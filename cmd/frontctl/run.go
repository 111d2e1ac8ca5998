package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/frontctl/chain"
	"github.com/jonwraymond/frontctl/param"
)

func newRunCmd(c *cli) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "run <request> [args...]",
		Short: "Dispatch one request and write its output to stdout",
		Long: `Dispatches a request once. Parameters resolve from the arg, env and server
sources: "arg:0" is the first positional argument and "arg:name" matches a
name=value (or --name=value) argument.`,
		Example: `  frontctl run hello name=Ada
  frontctl run report 2024-01 --format=csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			ctx = param.WithSources(ctx, param.Sources{
				param.KindArg:    param.ArgsSource(args[1:]),
				param.KindEnv:    a.EnvSource(),
				param.KindServer: param.ProcessSource(),
			})
			out, err := a.Dispatcher.HandleRequest(ctx, cmd.OutOrStdout(), args[0], nil)
			if err != nil {
				return err
			}
			if verbose {
				fmt.Fprintf(cmd.ErrOrStderr(), "request=%s outcome=%s cached=%t forwards=%d\n",
					out.Request, out.Kind, out.Cached, out.Forwards)
			}
			if out.Kind == chain.KindFatalAbort {
				return fmt.Errorf("request %q aborted", out.Request)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print the dispatch outcome to stderr")
	cmd.Flags().SetInterspersed(false)
	return cmd
}
