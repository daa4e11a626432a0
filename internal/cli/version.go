package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/larder"
)

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the larder version",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonMode {
				return a.printJSON(map[string]string{"version": larder.Version, "module": larder.ModulePath})
			}
			fmt.Fprintf(a.out, "larder v%s\nmodule: %s\n", larder.Version, larder.ModulePath)
			return nil
		},
	}
}
