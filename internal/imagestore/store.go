// Package imagestore persists captured photos as JPEG files in an
// application-private directory. Files are named from the capture timestamp;
// the catalog stores only the returned paths.
package imagestore

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// File naming: IMG_<yyyyMMdd_HHmmss>_<millis>.jpg, plus a counter suffix
// when two captures land in the same millisecond.
const (
	filePrefix      = "IMG_"
	fileExt         = ".jpg"
	timestampLayout = "20060102_150405"
	tombstoneExt    = ".deleted"
	maxNameAttempts = 100
)

// Store reads and writes image files under a single directory.
type Store struct {
	dir     string
	quality int
	now     func() time.Time
	log     zerolog.Logger

	mu sync.Mutex // serialises name selection in Save
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for file events.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l.With().Str("component", "imagestore").Logger() }
}

// WithClock overrides the timestamp source used for file names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New returns a Store rooted at dir, creating the directory if needed.
// quality is the JPEG quality used by Encode; zero selects the default.
func New(dir string, quality int, opts ...Option) (*Store, error) {
	if quality == 0 {
		quality = types.DefaultJPEGQuality
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving image dir: %w", types.ErrIOFailure, err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating image dir: %w", types.ErrIOFailure, err)
	}
	s := &Store{
		dir:     abs,
		quality: quality,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute directory holding the images.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes data to a new file and returns its absolute path.
// The file is synced and closed before Save returns, on success and on
// failure; a partially written file is removed.
func (s *Store) Save(data []byte) (path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, path, err := s.createUnique()
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: closing %s: %w", types.ErrIOFailure, path, cerr)
		}
		if err != nil {
			os.Remove(path)
			path = ""
		}
	}()

	if _, err := f.Write(data); err != nil {
		return path, fmt.Errorf("%w: writing %s: %w", types.ErrIOFailure, path, err)
	}
	if err := f.Sync(); err != nil {
		return path, fmt.Errorf("%w: syncing %s: %w", types.ErrIOFailure, path, err)
	}

	s.log.Debug().Str("path", path).Int("bytes", len(data)).Msg("image saved")
	return path, nil
}

// createUnique opens a new file named after the current timestamp. An
// existing name is never overwritten.
func (s *Store) createUnique() (*os.File, string, error) {
	now := s.now()
	base := filePrefix + now.Format(timestampLayout) + fmt.Sprintf("_%03d", now.Nanosecond()/int(time.Millisecond))

	for attempt := range maxNameAttempts {
		name := base + fileExt
		if attempt > 0 {
			name = fmt.Sprintf("%s_%d%s", base, attempt, fileExt)
		}
		path := filepath.Join(s.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: creating %s: %w", types.ErrIOFailure, path, err)
		}
	}
	return nil, "", fmt.Errorf("%w: no free file name for %s", types.ErrIOFailure, base)
}

// Load returns the bytes stored at path. An empty path or a missing file is
// reported as found == false with a nil error.
func (s *Store) Load(path string) (data []byte, found bool, err error) {
	if path == "" {
		return nil, false, nil
	}
	data, err = os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: reading %s: %w", types.ErrIOFailure, path, err)
	}
	return data, true, nil
}

// Delete removes the file at path. It returns false when there was nothing
// to delete (empty path or missing file).
func (s *Store) Delete(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%w: deleting %s: %w", types.ErrIOFailure, path, err)
	}
	s.log.Debug().Str("path", path).Msg("image deleted")
	return true, nil
}

// Encode compresses img as JPEG at the store's quality.
func (s *Store) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, fmt.Errorf("%w: encoding jpeg: %w", types.ErrIOFailure, err)
	}
	return buf.Bytes(), nil
}
