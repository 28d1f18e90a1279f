package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newQueriesCmd(a *app) *cobra.Command {
	queriesCmd := &cobra.Command{
		Use:   "queries",
		Short: "Inspect queries seen by cache instances",
	}

	var asJSON bool
	queriesListCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded queries with their ids and tables",
		Long: `List the queries recorded by cache instances configured with a query log.
The id of a query can be used in a queryIds rule.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := a.queryLog().List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEEN\tTABLES\tSQL")
			for _, info := range infos {
				tables := strings.Join(info.Tables, ",")
				if !info.Parsed {
					tables = "(unparsed)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", info.ID, info.Seen.Format(time.RFC3339), tables, strings.Join(strings.Fields(info.SQL), " "))
			}
			return w.Flush()
		},
	}
	queriesListCmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	queriesCmd.AddCommand(queriesListCmd)
	return queriesCmd
}
