package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.jsonl>",
		Short: "Write the catalog to a JSONL file",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer c.close(a)

			n, err := c.Export(args[0])
			if err != nil {
				return err
			}
			if a.jsonMode {
				return a.printJSON(map[string]any{"file": args[0], "exported": n})
			}
			fmt.Fprintf(a.out, "Exported %d item(s) to %s\n", n, args[0])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.jsonl>",
		Short: "Add the items from a JSONL export",
		Long:  "Import creates one new item per valid record. Record IDs are not reused; invalid records are skipped.",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer c.close(a)

			imported, skipped, err := c.Import(args[0])
			if err != nil {
				return err
			}
			if a.jsonMode {
				return a.printJSON(map[string]any{"file": args[0], "imported": imported, "skipped": skipped})
			}
			fmt.Fprintf(a.out, "Imported %d item(s), skipped %d\n", imported, skipped)
			return nil
		},
	}
}
