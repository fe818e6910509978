package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nedscode/rwrouter/cluster"
)

func newCheckCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Acquire a connection from every backend and ping it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			c, err := cluster.Open(cmd.Context(), cfg, cluster.WithLogger(logger))
			if err != nil {
				return err
			}
			defer c.Close()

			statuses := c.Check(cmd.Context())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tROLE\tSTATUS")
			unhealthy := 0
			for _, s := range statuses {
				status := "ok"
				if !s.Healthy() {
					status = s.Err.Error()
					unhealthy++
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", s.ID, s.Role, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if unhealthy > 0 {
				return fmt.Errorf("%d of %d backends unhealthy", unhealthy, len(statuses))
			}
			return nil
		},
	}
}
