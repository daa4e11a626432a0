package types

import "iter"

// Catalog is the authoritative, persisted collection of food items.
// Mutations are serialised by the implementation.
type Catalog interface {
	// Create validates the fields, assigns the next ID, persists the item,
	// and returns the stored record. expiry must be YYYY-MM-DD; imagePath may
	// be empty.
	Create(title, expiry, imagePath string) (*FoodItem, error)

	// Update replaces the stored record with item.ID and returns the number
	// of records changed. If the image path changed, the superseded image
	// file is removed as part of the update.
	// Returns ErrNotFound if no record has that ID.
	Update(item *FoodItem) (int, error)

	// Delete removes the record and its image file.
	// Returns ErrNotFound if no record has that ID.
	Delete(id int64) error

	// Get returns the record with the given ID.
	Get(id int64) (*FoodItem, error)

	// List returns a snapshot of all items in insertion order, taken at call
	// time. The sequence can be ranged over repeatedly.
	List() (iter.Seq[FoodItem], error)
}

// ImageRemover is the part of the image store the catalog needs to release
// files owned by replaced or deleted items.
type ImageRemover interface {
	// Tombstone moves the file at path aside. The returned Tombstone is nil
	// when there was nothing to remove.
	Tombstone(path string) (Tombstone, error)
}

// Tombstone is a removed-but-recoverable image file.
type Tombstone interface {
	// Restore puts the file back at its original path.
	Restore() error
	// Purge deletes the file permanently.
	Purge() error
}
