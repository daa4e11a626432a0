package types

import (
	"fmt"
	"strings"
)

// FoodItem is a perishable item tracked by the catalog.
// ID is assigned by the Catalog on creation; zero means not yet persisted.
// ImagePath references a file owned by this item; empty means no image.
type FoodItem struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Expiry    Date   `json:"expiry_date"`
	ImagePath string `json:"image_path,omitempty"`

	// Lazily loaded image bytes and the path they were loaded from.
	image     []byte
	imageFrom string
	imageOK   bool
}

// ImageLoader loads image bytes by path. A missing image is reported as
// found == false, not as an error.
type ImageLoader interface {
	Load(path string) (data []byte, found bool, err error)
}

// NewFoodItem returns an unpersisted item. An empty title is allowed here as
// an editing placeholder; Validate rejects it.
func NewFoodItem(title string, expiry Date, imagePath string) *FoodItem {
	return &FoodItem{Title: title, Expiry: expiry, ImagePath: imagePath}
}

// Validate checks the fields the catalog requires before persisting.
func (f *FoodItem) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if f.Expiry.IsZero() {
		return fmt.Errorf("%w: expiry date is required", ErrValidation)
	}
	return nil
}

// SetImagePath reassigns the image reference and drops any loaded bytes.
func (f *FoodItem) SetImagePath(path string) {
	f.ImagePath = path
	f.image = nil
	f.imageFrom = ""
	f.imageOK = false
}

// Image returns the item's image bytes, loading them on first use.
// The cached bytes are discarded when ImagePath no longer matches the path
// they were loaded from. Returns nil, nil when the item has no image or the
// file is gone.
func (f *FoodItem) Image(loader ImageLoader) ([]byte, error) {
	if f.ImagePath == "" {
		return nil, nil
	}
	if f.imageOK && f.imageFrom == f.ImagePath {
		return f.image, nil
	}
	data, found, err := loader.Load(f.ImagePath)
	if err != nil {
		return nil, err
	}
	if !found {
		data = nil
	}
	f.image = data
	f.imageFrom = f.ImagePath
	f.imageOK = true
	return data, nil
}

// Expired reports whether the item's expiry date is before today.
func (f *FoodItem) Expired(today Date) bool {
	return f.Expiry.Before(today)
}

// DaysUntilExpiry returns the days remaining until expiry; negative once the
// item has expired.
func (f *FoodItem) DaysUntilExpiry(today Date) int {
	return today.DaysUntil(f.Expiry)
}

// Record returns a copy of the persisted fields without the image cache.
func (f FoodItem) Record() FoodItem {
	return FoodItem{ID: f.ID, Title: f.Title, Expiry: f.Expiry, ImagePath: f.ImagePath}
}
