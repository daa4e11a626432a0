package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a food item and its photo",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			c, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer c.close(a)

			if err := c.Delete(id); err != nil {
				return err
			}
			if a.jsonMode {
				return a.printJSON(map[string]any{"deleted": id, "status": "success"})
			}
			fmt.Fprintf(a.out, "Deleted item %d\n", id)
			return nil
		},
	}
}
