package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/flexinfer/nemsgen/internal/registry"
	"github.com/flexinfer/nemsgen/pkg/types"
)

func (a *app) modelsCmd() *cobra.Command {
	var typeNames []string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List known model implementations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := &registry.ListOptions{}
			for _, name := range typeNames {
				t, err := types.ParseEntryType(name)
				if err != nil {
					return err
				}
				opts.Types = append(opts.Types, t)
			}

			impls, err := a.catalog.List(cmd.Context(), opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tPROCESSORS\tFORCING\tDESCRIPTION")
			for _, impl := range impls {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n",
					impl.ID, impl.Type.Code(), impl.DefaultProcessors, impl.Forcing, impl.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringSliceVarP(&typeNames, "type", "t", nil, "only list implementations of these types (ATM, OCN, ...)")
	return cmd
}
