package imagestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mesh-intelligence/larder/pkg/types"
)

var _ types.ImageRemover = (*Store)(nil)

// tombstone is an image file renamed aside pending a catalog commit.
type tombstone struct {
	store    *Store
	original string
	moved    string
	done     bool
}

// Tombstone renames the file at path to a hidden sibling so the catalog can
// either restore it (write failed) or purge it (write committed). Returns a
// nil Tombstone when path is empty or the file does not exist.
func (s *Store) Tombstone(path string) (types.Tombstone, error) {
	if path == "" {
		return nil, nil
	}
	moved := path + tombstoneExt
	if err := os.Rename(path, moved); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: moving %s aside: %w", types.ErrIOFailure, path, err)
	}
	return &tombstone{store: s, original: path, moved: moved}, nil
}

func (t *tombstone) Restore() error {
	if t.done {
		return nil
	}
	if err := os.Rename(t.moved, t.original); err != nil {
		return fmt.Errorf("%w: restoring %s: %w", types.ErrIOFailure, t.original, err)
	}
	t.done = true
	return nil
}

func (t *tombstone) Purge() error {
	if t.done {
		return nil
	}
	if err := os.Remove(t.moved); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: purging %s: %w", types.ErrIOFailure, t.original, err)
	}
	t.done = true
	t.store.log.Debug().Str("path", t.original).Msg("image deleted")
	return nil
}
