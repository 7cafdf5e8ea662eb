package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) renderCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "render MANIFEST",
		Short: "Print the rendered configuration files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sys, err := a.build(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			texts := sys.Configuration()
			out := cmd.OutOrStdout()
			if file != "" {
				text, ok := texts[file]
				if !ok {
					return fmt.Errorf("unknown file %q", file)
				}
				fmt.Fprintln(out, text)
				return nil
			}

			for i, f := range sys.Files() {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "==> %s <==\n%s\n", f.Name(), texts[f.Name()])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "print only this file (nems.configure, config.rc or model_configure)")
	return cmd
}
