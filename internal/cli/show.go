package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/types"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Display a food item",
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

			item, err := c.Get(id)
			if err != nil {
				return err
			}
			image, err := item.Image(c.images)
			if err != nil {
				return err
			}

			today := types.Today()
			if a.jsonMode {
				return a.printJSON(struct {
					itemView
					ImageBytes int `json:"image_bytes"`
				}{viewOf(*item, today), len(image)})
			}

			fmt.Fprintf(a.out, "ID:       %d\n", item.ID)
			fmt.Fprintf(a.out, "Title:    %s\n", item.Title)
			fmt.Fprintf(a.out, "Expires:  %s (%s)\n", item.Expiry, daysLabel(*item, today))
			switch {
			case item.ImagePath == "":
				fmt.Fprintln(a.out, "Image:    none")
			case image == nil:
				fmt.Fprintf(a.out, "Image:    %s (missing)\n", item.ImagePath)
			default:
				fmt.Fprintf(a.out, "Image:    %s (%d bytes)\n", item.ImagePath, len(image))
			}
			return nil
		},
	}
}
