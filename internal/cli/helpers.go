package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/mesh-intelligence/larder/internal/imagestore"
	"github.com/mesh-intelligence/larder/internal/sqlite"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// catalog is an attached backend together with the image store it owns.
type catalog struct {
	*sqlite.Backend
	images *imagestore.Store
}

// openCatalog creates the image store and attaches the SQLite backend. The
// caller must defer close.
func (a *app) openCatalog() (*catalog, error) {
	cfg := a.settings.catalogConfig()
	images, err := imagestore.New(cfg.ImageDir, cfg.Quality(), imagestore.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	backend := sqlite.NewBackend(images, sqlite.WithLogger(a.log))
	if err := backend.Attach(cfg); err != nil {
		return nil, err
	}
	return &catalog{Backend: backend, images: images}, nil
}

func (c *catalog) close(a *app) {
	if err := c.Detach(); err != nil {
		a.log.Warn().Err(err).Msg("detaching catalog")
	}
}

// importImage copies an image file given on the command line into the
// image store and returns the stored path.
func (c *catalog) importImage(src string) (string, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %w", types.ErrValidation, src, err)
	}
	return c.images.Save(data)
}

// discardImage removes a stored image that no item ended up owning.
func (a *app) discardImage(c *catalog, path string) {
	if path == "" {
		return
	}
	if _, err := c.images.Delete(path); err != nil {
		a.log.Warn().Err(err).Str("path", path).Msg("removing unowned image")
	}
}

// parseID parses a food item ID argument.
func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid item id %q", s)
	}
	return id, nil
}

// itemView is the JSON shape of an item in command output.
type itemView struct {
	types.FoodItem
	DaysLeft int  `json:"days_left"`
	Expired  bool `json:"expired"`
}

func viewOf(item types.FoodItem, today types.Date) itemView {
	return itemView{
		FoodItem: item.Record(),
		DaysLeft: item.DaysUntilExpiry(today),
		Expired:  item.Expired(today),
	}
}

func (a *app) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintln(a.out, string(out))
	return nil
}

// printItemTable prints items in a human-readable table.
func printItemTable(w io.Writer, items []types.FoodItem, today types.Date) {
	if len(items) == 0 {
		fmt.Fprintln(w, "No food items found.")
		return
	}

	var sb strings.Builder
	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tEXPIRES\tDAYS\tIMAGE")
	fmt.Fprintln(tw, "--\t-----\t-------\t----\t-----")
	for _, it := range items {
		title := it.Title
		if len([]rune(title)) > 40 {
			title = string([]rune(title)[:37]) + "..."
		}
		image := "-"
		if it.ImagePath != "" {
			image = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", it.ID, title, it.Expiry, daysLabel(it, today), image)
	}
	tw.Flush()

	for _, line := range strings.Split(strings.TrimRight(sb.String(), "\n"), "\n") {
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	fmt.Fprintf(w, "Total: %d item(s)\n", len(items))
}

func daysLabel(item types.FoodItem, today types.Date) string {
	days := item.DaysUntilExpiry(today)
	switch {
	case days < 0:
		return fmt.Sprintf("expired %dd ago", -days)
	case days == 0:
		return "today"
	default:
		return strconv.Itoa(days)
	}
}
