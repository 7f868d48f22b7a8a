package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bond-arena/internal/game"
)

func newElementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "elements",
		Short: "Print the element table",
		RunE: func(cmd *cobra.Command, args []string) error {
			elements := game.Elements()

			if jsonOutput(cmd) {
				defs := make([]game.ElementDef, len(elements))
				for i, e := range elements {
					defs[i] = e.Def()
				}
				return writeJSON(cmd.OutOrStdout(), defs)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SYMBOL\tNAME\tVALENCY\tMASS\tRADIUS\tCOLOR\tSPAWN WEIGHT")
			for _, e := range elements {
				d := e.Def()
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f\t%.0f\t%s\t%d\n",
					d.Symbol, d.Name, d.Valency, d.Mass, d.Radius, d.Color, d.Weight)
			}
			return tw.Flush()
		},
	}
}
