package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/pkg/types"
)

type updateOptions struct {
	title      string
	expiry     string
	image      string
	clearImage bool
}

func newUpdateCmd(a *app) *cobra.Command {
	var opts updateOptions
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change a food item",
		Long: `Update replaces the fields given by flags and keeps the others.
Replacing or clearing the photo deletes the previous photo file.

Example:
  larder update 3 --expiry 2025-04-01
  larder update 3 --image fresh.jpg
  larder update 3 --clear-image`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if opts.image != "" && opts.clearImage {
				return usagef("--image and --clear-image cannot be combined")
			}
			f := cmd.Flags()
			if !f.Changed("title") && !f.Changed("expiry") && opts.image == "" && !opts.clearImage {
				return usagef("nothing to update")
			}
			return a.runUpdate(id, opts, f.Changed("title"), f.Changed("expiry"))
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.title, "title", "", "new title")
	f.StringVar(&opts.expiry, "expiry", "", "new expiry date, YYYY-MM-DD")
	f.StringVar(&opts.image, "image", "", "replace the photo with this file")
	f.BoolVar(&opts.clearImage, "clear-image", false, "remove the photo")
	return cmd
}

func (a *app) runUpdate(id int64, opts updateOptions, setTitle, setExpiry bool) error {
	c, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer c.close(a)

	item, err := c.Get(id)
	if err != nil {
		return err
	}
	if setTitle {
		item.Title = opts.title
	}
	if setExpiry {
		if item.Expiry, err = types.ParseDate(opts.expiry); err != nil {
			return err
		}
	}

	var newImage string
	switch {
	case opts.clearImage:
		item.SetImagePath("")
	case opts.image != "":
		if newImage, err = c.importImage(opts.image); err != nil {
			return err
		}
		item.SetImagePath(newImage)
	}

	if _, err := c.Update(item); err != nil {
		a.discardImage(c, newImage)
		return err
	}

	if a.jsonMode {
		return a.printJSON(viewOf(*item, types.Today()))
	}
	fmt.Fprintf(a.out, "Updated item %d\n", item.ID)
	return nil
}
