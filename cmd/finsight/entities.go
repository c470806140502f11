package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ternarybob/finsight/internal/services/entities"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities [query]",
	Short: "List covered stocks, or show which stock a query resolves to",
	RunE:  runEntities,
}

func runEntities(cmd *cobra.Command, args []string) error {
	index, err := entities.Load(config.Entities, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) > 0 {
		query := strings.Join(args, " ")
		record, ok := index.Resolve(query)
		if !ok {
			return fmt.Errorf("stock '%s' not found in Nifty 50", query)
		}
		fmt.Fprintf(out, "%s -> %s (%s) %s\n", query, record.Name, record.Symbol, record.Slug)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tNAME\tSLUG")
	for _, r := range index.Records() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Symbol, r.Name, r.Slug)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d stocks, %d search terms\n", index.Len(), len(index.Terms()))
	return nil
}
