// Package sqlite implements the SQLite-backed food catalog.
// The database holds one row per FoodItem; image bytes stay in the image
// store and only their paths are persisted here.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// dbFileName is the database file created under Config.DataDir.
const dbFileName = "larder.db"

// Compile-time interface check.
var _ types.Catalog = (*Backend)(nil)

// Backend implements types.Catalog on a SQLite database.
// Writes hold the write lock for their whole duration, so at most one
// mutation is in flight.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	images   types.ImageRemover
	log      zerolog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for catalog events.
func WithLogger(l zerolog.Logger) Option {
	return func(b *Backend) { b.log = l.With().Str("component", "catalog").Logger() }
}

// NewBackend creates a new SQLite backend. images releases the files of
// replaced and deleted items; it may be nil when items never carry images.
// The backend is not attached; call Attach with a Config to initialise.
func NewBackend(images types.ImageRemover, opts ...Option) *Backend {
	b := &Backend{
		images: images,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens (or creates) the catalog database under config.DataDir and
// ensures the schema exists. Existing records are kept.
// Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("%w: creating data dir: %w", types.ErrPersistence, err)
	}

	dbPath := filepath.Join(dataDir, dbFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", types.ErrPersistence, dbPath, err)
	}
	// A single connection keeps the write lock meaningful and avoids
	// SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("%w: creating schema: %w", types.ErrPersistence, err)
		}
	}

	b.db = db
	b.config = config
	b.attached = true

	b.log.Debug().Str("db", dbPath).Msg("catalog attached")
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrCatalogDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("%w: closing database: %w", types.ErrPersistence, err)
		}
		b.db = nil
	}
	b.attached = false

	b.log.Debug().Msg("catalog detached")
	return nil
}
