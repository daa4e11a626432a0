package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/larder/internal/capture"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// scannedItemTitle pre-fills the title of items captured in barcode mode.
const scannedItemTitle = "Scanned Item"

type captureOptions struct {
	frame  string
	mode   string
	title  string
	expiry string
	id     string
}

func newCaptureCmd(a *app) *cobra.Command {
	var opts captureOptions
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Photograph a food item",
		Long: `Capture takes a photo from the frame source, corrects its orientation,
stores it and attaches it to a new item, or with --id to an existing one
(replacing its previous photo).

Camera access follows camera_permission in config.yaml; "prompt" asks on
the terminal. Barcode mode pre-fills the title "Scanned Item".

Example:
  larder capture --frame shot.jpg --title Milk --expiry 2025-03-20
  larder capture --frame label.jpg --mode barcode --expiry 2025-04-01
  larder capture --frame shot.jpg --id 3`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCapture(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.frame, "frame", "", "image file used as the camera source (required)")
	f.StringVar(&opts.mode, "mode", "freeform", "capture mode: freeform or barcode")
	f.StringVar(&opts.title, "title", "", "title of the new item")
	f.StringVar(&opts.expiry, "expiry", "", "expiry date of the new item, YYYY-MM-DD")
	f.StringVar(&opts.id, "id", "", "attach the photo to this existing item")
	return cmd
}

func (a *app) runCapture(ctx context.Context, opts captureOptions) error {
	if opts.frame == "" {
		return usagef("--frame is required")
	}
	mode, err := capture.ParseMode(opts.mode)
	if err != nil {
		return usagef("%v", err)
	}

	var id int64
	if opts.id != "" {
		if id, err = parseID(opts.id); err != nil {
			return err
		}
	} else if _, err := types.ParseDate(opts.expiry); err != nil {
		return err
	}

	c, err := a.openCatalog()
	if err != nil {
		return err
	}
	defer c.close(a)

	if id != 0 {
		// Fail before taking the photo if the item is gone.
		if _, err := c.Get(id); err != nil {
			return err
		}
	}

	res, err := a.takePhoto(ctx, c, opts.frame, mode)
	if err != nil {
		return err
	}

	item, err := a.attachPhoto(c, id, opts, res)
	if err != nil {
		a.discardImage(c, res.ImagePath)
		return err
	}

	if a.jsonMode {
		return a.printJSON(struct {
			itemView
			SessionID string `json:"session_id"`
			Mode      string `json:"mode"`
		}{viewOf(*item, types.Today()), res.SessionID, res.Mode.String()})
	}
	fmt.Fprintf(a.out, "Captured %s for item %d: %s\n", item.ImagePath, item.ID, item.Title)
	return nil
}

// takePhoto runs one capture session against the still camera and waits
// for its outcome. An interrupt cancels the session.
func (a *app) takePhoto(ctx context.Context, c *catalog, frame string, mode capture.Mode) (capture.Result, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	ctrl := capture.NewController(capture.NewStillCamera(frame), a.cameraPermission(), c.images,
		capture.WithLogger(a.log))
	defer func() {
		if err := ctrl.Close(context.Background()); err != nil {
			a.log.Warn().Err(err).Msg("closing camera")
		}
	}()

	results := make(chan capture.Result, 1)
	s := ctrl.Open(ctx, mode, func(r capture.Result) { results <- r })

	select {
	case <-s.Ready():
		if err := s.Capture(); err != nil {
			return capture.Result{}, err
		}
		<-s.Done()
	case <-s.Done():
	}

	select {
	case r := <-results:
		if r.Err != nil {
			return capture.Result{}, r.Err
		}
		return r, nil
	default:
		return capture.Result{}, fmt.Errorf("capture cancelled: %w", context.Canceled)
	}
}

// attachPhoto creates a new item for the photo, or replaces the photo of
// item id.
func (a *app) attachPhoto(c *catalog, id int64, opts captureOptions, res capture.Result) (*types.FoodItem, error) {
	if id != 0 {
		item, err := c.Get(id)
		if err != nil {
			return nil, err
		}
		item.SetImagePath(res.ImagePath)
		if _, err := c.Update(item); err != nil {
			return nil, err
		}
		return item, nil
	}

	title := opts.title
	if title == "" && res.Mode == capture.ModeBarcode {
		title = scannedItemTitle
	}
	return c.Create(title, opts.expiry, res.ImagePath)
}

func (a *app) cameraPermission() capture.Permission {
	switch a.settings.CameraPermission {
	case permissionGranted:
		return capture.StaticPermission(true)
	case permissionDenied:
		return capture.StaticPermission(false)
	default:
		return capture.NewPromptPermission(a.in, a.err)
	}
}
