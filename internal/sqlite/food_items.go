// This file implements the catalog operations on the food_items table.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// Create validates the fields, inserts a new row, and returns the stored
// record with its assigned ID.
func (b *Backend) Create(title, expiry, imagePath string) (*types.FoodItem, error) {
	date, err := types.ParseDate(expiry)
	if err != nil {
		return nil, err
	}
	item := types.NewFoodItem(strings.TrimSpace(title), date, imagePath)
	if err := item.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: beginning transaction: %w", types.ErrPersistence, err)
	}
	defer tx.Rollback()

	if err := checkImageOwner(tx, item.ImagePath, 0); err != nil {
		return nil, err
	}

	res, err := tx.Exec(
		"INSERT INTO food_items (title, expiry_date, image_path) VALUES (?, ?, ?)",
		item.Title, item.Expiry.String(), nullString(item.ImagePath),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: inserting food item: %w", types.ErrPersistence, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: reading new id: %w", types.ErrPersistence, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: committing food item: %w", types.ErrPersistence, err)
	}

	item.ID = id
	b.log.Debug().Int64("id", id).Str("title", item.Title).Msg("food item created")
	return item, nil
}

// Update replaces the row with item.ID. When the image path changes, the
// superseded file is moved aside before the commit and purged after it, so
// either both the row and the file change or neither does.
func (b *Backend) Update(item *types.FoodItem) (int, error) {
	if item == nil {
		return 0, fmt.Errorf("%w: nil food item", types.ErrValidation)
	}
	title := strings.TrimSpace(item.Title)
	if err := item.Validate(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, types.ErrCatalogDetached
	}

	tx, err := b.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", types.ErrPersistence, err)
	}
	defer tx.Rollback()

	oldPath, err := imagePathOf(tx, item.ID)
	if err != nil {
		return 0, err
	}
	if err := checkImageOwner(tx, item.ImagePath, item.ID); err != nil {
		return 0, err
	}

	res, err := tx.Exec(
		"UPDATE food_items SET title = ?, expiry_date = ?, image_path = ? WHERE id = ?",
		title, item.Expiry.String(), nullString(item.ImagePath), item.ID,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: updating food item %d: %w", types.ErrPersistence, item.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: reading update count: %w", types.ErrPersistence, err)
	}

	var superseded types.Tombstone
	if oldPath != "" && oldPath != item.ImagePath {
		if superseded, err = b.tombstone(oldPath); err != nil {
			return 0, err
		}
	}

	if err := b.commit(tx, superseded); err != nil {
		return 0, fmt.Errorf("%w: committing update of %d: %w", types.ErrPersistence, item.ID, err)
	}

	item.Title = title
	b.log.Debug().Int64("id", item.ID).Bool("image_replaced", superseded != nil).Msg("food item updated")
	return int(n), nil
}

// Delete removes the row with the given ID together with its image file.
// Returns ErrNotFound, leaving the catalog unchanged, for an unknown ID.
func (b *Backend) Delete(id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrCatalogDetached
	}

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", types.ErrPersistence, err)
	}
	defer tx.Rollback()

	path, err := imagePathOf(tx, id)
	if err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM food_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("%w: deleting food item %d: %w", types.ErrPersistence, id, err)
	}

	image, err := b.tombstone(path)
	if err != nil {
		return err
	}

	if err := b.commit(tx, image); err != nil {
		return fmt.Errorf("%w: committing deletion of %d: %w", types.ErrPersistence, id, err)
	}

	b.log.Debug().Int64("id", id).Msg("food item deleted")
	return nil
}

// Get returns the record with the given ID.
func (b *Backend) Get(id int64) (*types.FoodItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	row := b.db.QueryRow("SELECT "+foodItemColumns+" FROM food_items WHERE id = ?", id)
	item, err := hydrateFoodItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("food item %d: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: getting food item %d: %w", types.ErrPersistence, id, err)
	}
	return item, nil
}

// List returns every item in insertion order. The rows are read when List is
// called; the returned sequence replays that snapshot.
func (b *Backend) List() (iter.Seq[types.FoodItem], error) {
	items, err := b.snapshot()
	if err != nil {
		return nil, err
	}
	return slices.Values(items), nil
}

// snapshot reads all rows ordered by id.
func (b *Backend) snapshot() ([]types.FoodItem, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrCatalogDetached
	}

	rows, err := b.db.Query("SELECT " + foodItemColumns + " FROM food_items ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: listing food items: %w", types.ErrPersistence, err)
	}
	defer rows.Close()

	items := []types.FoodItem{}
	for rows.Next() {
		item, err := hydrateFoodItem(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: hydrating food item: %w", types.ErrPersistence, err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating food items: %w", types.ErrPersistence, err)
	}
	return items, nil
}

// tombstone moves an owned image aside, or returns nil when the backend has
// no image store or there is no file.
func (b *Backend) tombstone(path string) (types.Tombstone, error) {
	if b.images == nil || path == "" {
		return nil, nil
	}
	return b.images.Tombstone(path)
}

// commit commits tx and then purges the tombstoned image. If the commit
// fails the image is restored. A purge failure leaves an orphan file but the
// committed row is authoritative, so it is only logged.
func (b *Backend) commit(tx *sql.Tx, image types.Tombstone) error {
	if err := tx.Commit(); err != nil {
		if image != nil {
			if rerr := image.Restore(); rerr != nil {
				b.log.Warn().Err(rerr).Msg("restoring image after failed commit")
			}
		}
		return err
	}
	if image != nil {
		if err := image.Purge(); err != nil {
			b.log.Warn().Err(err).Msg("purging superseded image")
		}
	}
	return nil
}

// imagePathOf returns the stored image path for id, or ErrNotFound.
func imagePathOf(tx *sql.Tx, id int64) (string, error) {
	var path sql.NullString
	err := tx.QueryRow("SELECT image_path FROM food_items WHERE id = ?", id).Scan(&path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("food item %d: %w", id, types.ErrNotFound)
		}
		return "", fmt.Errorf("%w: reading food item %d: %w", types.ErrPersistence, id, err)
	}
	return path.String, nil
}

// checkImageOwner rejects a path already referenced by a record other than
// selfID.
func checkImageOwner(tx *sql.Tx, path string, selfID int64) error {
	if path == "" {
		return nil
	}
	var owner int64
	err := tx.QueryRow("SELECT id FROM food_items WHERE image_path = ? AND id != ?", path, selfID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: checking image owner: %w", types.ErrPersistence, err)
	}
	return fmt.Errorf("%w: image %s already belongs to item %d", types.ErrValidation, path, owner)
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// hydrateFoodItem converts a row into a *types.FoodItem.
func hydrateFoodItem(row rowScanner) (*types.FoodItem, error) {
	var (
		item   types.FoodItem
		expiry string
		path   sql.NullString
	)
	if err := row.Scan(&item.ID, &item.Title, &expiry, &path); err != nil {
		return nil, err
	}
	date, err := types.ParseDate(expiry)
	if err != nil {
		return nil, fmt.Errorf("parsing expiry_date of %d: %w", item.ID, err)
	}
	item.Expiry = date
	item.ImagePath = path.String
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
