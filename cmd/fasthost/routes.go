package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/searchktools/fast-host/core/router"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "List the registered routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRoutes(cmd.OutOrStdout(), router.NewCatalog(demoModules()...))
		},
	}
}

func printRoutes(w io.Writer, catalog *router.Catalog) error {
	type row struct{ method, path, name, module string }
	var rows []row
	for _, entry := range catalog.Cache() {
		for _, r := range entry.Routes {
			d := r.Description
			rows = append(rows, row{d.Method, d.Path, d.Name, entry.ModuleKey})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].path != rows[j].path {
			return rows[i].path < rows[j].path
		}
		return rows[i].method < rows[j].method
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tNAME\tMODULE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.method, r.path, r.name, r.module)
	}
	return tw.Flush()
}
