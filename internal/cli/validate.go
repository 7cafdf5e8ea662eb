package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flexinfer/nemsgen/pkg/nems"
)

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate MANIFEST",
		Short: "Validate a manifest, run its checks and print the processor layout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.build(cmd.Context(), args[0])
			if sys != nil {
				printPetList(cmd.OutOrStdout(), sys)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid: %d processors over %s\n",
				args[0], sys.Processors(), sys.Duration())
			return nil
		},
	}
}

// printPetList prints one row per model with its processor bounds.
func printPetList(w io.Writer, sys *nems.ModelingSystem) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tNAME\tPROCESSORS\tPETS")
	for _, m := range sys.Models() {
		pets := "-"
		if m.Linked() {
			pets = fmt.Sprintf("%d %d", m.StartProcessor(), m.EndProcessor())
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", m.Type().Code(), m.Name(), m.Processors(), pets)
	}
	fmt.Fprintf(tw, "TOTAL\t\t%d\t\n", sys.Processors())
	tw.Flush()
}
