package cli

import (
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/query"
	"github.com/mesh-intelligence/larder/pkg/types"
)

type listOptions struct {
	search  string
	sortKey string
	desc    bool
	expired bool
	fresh   bool
}

func newListCmd(a *app) *cobra.Command {
	var opts listOptions
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List food items",
		Long: `List shows the catalog, optionally filtered by a case-insensitive title
search and sorted by title or expiry date.

Example:
  larder list
  larder list --search milk
  larder list --sort expiry
  larder list --sort title --desc --json
  larder list --expired`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.search, "search", "", "show items whose title contains this text")
	f.StringVar(&opts.sortKey, "sort", "", "sort by title or expiry (default: insertion order)")
	f.BoolVar(&opts.desc, "desc", false, "sort descending")
	f.BoolVar(&opts.expired, "expired", false, "only items past their expiry date")
	f.BoolVar(&opts.fresh, "fresh", false, "only items not yet expired")
	return cmd
}

func (a *app) runList(opts listOptions) error {
	var (
		key query.Key
		err error
	)
	if opts.expired && opts.fresh {
		return usagef("--expired and --fresh cannot be combined")
	}
	if opts.sortKey != "" {
		if key, err = query.ParseKey(opts.sortKey); err != nil {
			return usagef("%v", err)
		}
	} else if opts.desc {
		return usagef("--desc requires --sort")
	}

	c, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer c.close(a)

	seq, err := c.List()
	if err != nil {
		return err
	}
	items := slices.Collect(seq)

	today := types.Today()
	items = query.FilterByTitle(items, opts.search)
	switch {
	case opts.expired:
		items = query.Expired(items, today)
	case opts.fresh:
		items = query.Fresh(items, today)
	}
	if opts.sortKey != "" {
		dir := query.Ascending
		if opts.desc {
			dir = query.Descending
		}
		items = query.SortBy(items, key, dir)
	}

	if a.jsonMode {
		views := make([]itemView, len(items))
		for i, it := range items {
			views[i] = viewOf(it, today)
		}
		return a.printJSON(views)
	}
	printItemTable(a.out, items, today)
	return nil
}
