package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/nedscode/rwrouter"
	"github.com/nedscode/rwrouter/cluster"
)

const decisionsMetric = "rwrouter_routing_decisions_total"

func newRouteCmd(f *rootFlags) *cobra.Command {
	var (
		readOnly bool
		count    int
		query    string
	)
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Run transactions through the router and report which backends served them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			cfg, logger, err := f.load(cmd)
			if err != nil {
				return err
			}
			reg := prometheus.NewRegistry()
			c, err := cluster.Open(cmd.Context(), cfg, cluster.WithLogger(logger), cluster.WithRegisterer(reg))
			if err != nil {
				return err
			}
			defer c.Close()

			opts := rwrouter.TxOptions{ReadOnly: readOnly}
			for range count {
				err := rwrouter.RunInTx(cmd.Context(), c.Router(), opts, func(ctx context.Context, tx *rwrouter.Tx) error {
					_, err := tx.Exec(ctx, query)
					return err
				})
				if err != nil {
					return err
				}
			}
			return printDecisions(cmd.OutOrStdout(), reg)
		},
	}
	cmd.Flags().BoolVar(&readOnly, "read-only", false, "begin the transactions read-only")
	cmd.Flags().IntVarP(&count, "count", "n", 100, "number of transactions to run")
	cmd.Flags().StringVar(&query, "query", "SELECT 1", "statement to run in each transaction")
	return cmd
}

func printDecisions(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	type row struct {
		backend, role string
		count         float64
	}
	var rows []row
	for _, mf := range families {
		if mf.GetName() != decisionsMetric {
			continue
		}
		for _, m := range mf.GetMetric() {
			rows = append(rows, row{
				backend: label(m, "backend"),
				role:    label(m, "role"),
				count:   m.GetCounter().GetValue(),
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return backendOrder(rows[i].backend, rows[j].backend) })

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BACKEND\tROLE\tTRANSACTIONS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.0f\n", r.backend, r.role, r.count)
	}
	return w.Flush()
}

// backendOrder orders backend labels by numeric id
func backendOrder(a, b string) bool {
	x, errX := strconv.Atoi(a)
	y, errY := strconv.Atoi(b)
	if errX != nil || errY != nil {
		return a < b
	}
	return x < y
}

func label(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
