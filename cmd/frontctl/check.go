package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/frontctl/health"
)

// errUnhealthy is returned when a backend check fails.
var errUnhealthy = errors.New("one or more checks are unhealthy")

func newCheckCmd(c *cli) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the routes file and report backend health",
		Long: `Loads and validates the routes file, builds every request, initializes the
backends and prints the result of each health check. --purge empties every
cache backend first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(ctx) }()

			out := cmd.OutOrStdout()
			var buildErrs []error
			for _, name := range a.Catalog.Names() {
				if _, err := a.Catalog.Request(name); err != nil {
					buildErrs = append(buildErrs, err)
				}
			}
			fmt.Fprintf(out, "config %s: %d requests\n", c.server.ConfigPath, len(a.Catalog.Names()))
			if err := errors.Join(buildErrs...); err != nil {
				return err
			}

			if purge {
				if err := a.Caches.Clear(ctx); err != nil {
					return fmt.Errorf("purge: %w", err)
				}
				fmt.Fprintf(out, "purged %d cache backends\n", a.Caches.Len())
			}

			results := a.Health.CheckAll(ctx)
			for _, r := range results {
				line := fmt.Sprintf("%-24s %s", r.Name, r.Result.Status)
				if r.Result.Message != "" {
					line += "  " + r.Result.Message
				}
				fmt.Fprintln(out, line)
			}
			if health.OverallStatus(results) == health.StatusUnhealthy {
				return errUnhealthy
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "clear every cache backend")
	return cmd
}
