package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	var title, expiry, image string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a food item",
		Long: `Add creates a food item with a title and an expiry date (YYYY-MM-DD).
An optional photo is copied into the image store.

Example:
  larder add --title Milk --expiry 2025-03-20
  larder add --title Bread --expiry 2025-03-18 --image bread.jpg`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer c.close(a)

			var imagePath string
			if image != "" {
				if imagePath, err = c.importImage(image); err != nil {
					return err
				}
			}
			item, err := c.Create(title, expiry, imagePath)
			if err != nil {
				a.discardImage(c, imagePath)
				return err
			}
			return a.printCreated(item)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "item title (required)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiry date, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&image, "image", "", "photo to attach")
	return cmd
}

func (a *app) printCreated(item *types.FoodItem) error {
	if a.jsonMode {
		return a.printJSON(viewOf(*item, types.Today()))
	}
	fmt.Fprintf(a.out, "Created item %d: %s (expires %s)\n", item.ID, item.Title, item.Expiry)
	return nil
}
