package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/frontctl/config"
)

func newRoutesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the requests declared in the routes file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := config.Load(c.server.ConfigPath)
			if err != nil {
				return err
			}
			catalog, err := config.NewCatalog(f)
			if err != nil {
				return err
			}
			defer func() { _ = catalog.Close() }()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REQUEST\tCACHE\tCOMMANDS")
			for _, name := range catalog.Names() {
				spec, _ := catalog.Spec(name)
				steps := make([]string, len(spec.Commands))
				for i, cs := range spec.Commands {
					steps[i] = cs.Name + ":" + cs.Type
				}
				cache := "-"
				if spec.Cache {
					cache = "yes"
					if spec.CacheTarget != "" {
						cache = spec.CacheTarget
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, cache, strings.Join(steps, " -> "))
			}
			return tw.Flush()
		},
	}
}
