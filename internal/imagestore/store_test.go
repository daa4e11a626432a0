package imagestore

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// setupStore returns a Store in a temp dir with a fixed clock.
func setupStore(t *testing.T) *Store {
	t.Helper()
	fixed := time.Date(2025, time.March, 20, 10, 15, 30, 123_000_000, time.Local)
	s, err := New(filepath.Join(t.TempDir(), "food_images"), 0, WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)
	return s
}

func TestSave(t *testing.T) {
	s := setupStore(t)

	path, err := s.Save([]byte("jpeg-bytes"))
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, s.Dir(), filepath.Dir(path))
	assert.Equal(t, "IMG_20250320_101530_123.jpg", filepath.Base(path))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), got)
}

func TestSaveSameTimestampDoesNotOverwrite(t *testing.T) {
	s := setupStore(t)

	seen := make(map[string]bool)
	for i := range 5 {
		path, err := s.Save([]byte{byte(i)})
		require.NoError(t, err)
		assert.False(t, seen[path], "path %s reused", path)
		seen[path] = true
		assert.True(t, strings.HasPrefix(filepath.Base(path), "IMG_20250320_101530_123"))
	}

	for path := range seen {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Len(t, data, 1)
	}
}

func TestSaveFailureLeavesNoFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	s := setupStore(t)
	require.NoError(t, os.Chmod(s.Dir(), 0o500))
	t.Cleanup(func() { os.Chmod(s.Dir(), 0o700) })

	path, err := s.Save([]byte("data"))
	assert.ErrorIs(t, err, types.ErrIOFailure)
	assert.Empty(t, path)
}

func TestLoad(t *testing.T) {
	s := setupStore(t)
	path, err := s.Save([]byte("photo"))
	require.NoError(t, err)

	tests := []struct {
		name      string
		path      string
		wantFound bool
		wantData  []byte
	}{
		{name: "existing file", path: path, wantFound: true, wantData: []byte("photo")},
		{name: "empty path is absent", path: ""},
		{name: "missing file is absent", path: filepath.Join(s.Dir(), "IMG_missing.jpg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, found, err := s.Load(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.wantData, data)
		})
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := setupStore(t)
	path, err := s.Save([]byte("photo"))
	require.NoError(t, err)

	deleted, err := s.Delete(path)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(path)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = s.Delete("")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, found, err := s.Load(path)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestTombstone(t *testing.T) {
	t.Run("restore puts the file back", func(t *testing.T) {
		s := setupStore(t)
		path, err := s.Save([]byte("photo"))
		require.NoError(t, err)

		ts, err := s.Tombstone(path)
		require.NoError(t, err)
		require.NotNil(t, ts)

		_, found, _ := s.Load(path)
		assert.False(t, found, "tombstoned file must not be visible")

		require.NoError(t, ts.Restore())
		data, found, err := s.Load(path)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("photo"), data)
	})

	t.Run("purge removes the file", func(t *testing.T) {
		s := setupStore(t)
		path, err := s.Save([]byte("photo"))
		require.NoError(t, err)

		ts, err := s.Tombstone(path)
		require.NoError(t, err)
		require.NoError(t, ts.Purge())
		require.NoError(t, ts.Restore(), "restore after purge is a no-op")

		entries, err := os.ReadDir(s.Dir())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("nothing to remove", func(t *testing.T) {
		s := setupStore(t)
		ts, err := s.Tombstone("")
		require.NoError(t, err)
		assert.Nil(t, ts)

		ts, err = s.Tombstone(filepath.Join(s.Dir(), "IMG_missing.jpg"))
		require.NoError(t, err)
		assert.Nil(t, ts)
	})
}

func TestEncode(t *testing.T) {
	s := setupStore(t)
	img := image.NewRGBA(image.Rect(0, 0, 8, 4))
	for x := range 8 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}

	data, err := s.Encode(img)
	require.NoError(t, err)

	decoded, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}
