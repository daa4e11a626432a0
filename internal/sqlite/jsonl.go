// This file provides JSONL export and import of the catalog with atomic
// persistence.
package sqlite

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/larder/pkg/types"
)

// foodItemJSONLRecord is one line of an export file.
type foodItemJSONLRecord struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ExpiryDate string `json:"expiry_date"`
	ImagePath  string `json:"image_path,omitempty"`
}

// Export writes every item to path as JSONL, one record per line in
// insertion order. The file is replaced atomically.
func (b *Backend) Export(path string) (int, error) {
	items, err := b.snapshot()
	if err != nil {
		return 0, err
	}

	records := make([]foodItemJSONLRecord, len(items))
	for i, item := range items {
		records[i] = foodItemJSONLRecord{
			ID:         item.ID,
			Title:      item.Title,
			ExpiryDate: item.Expiry.String(),
			ImagePath:  item.ImagePath,
		}
	}

	if err := writeRecords(path, records); err != nil {
		return 0, fmt.Errorf("%w: exporting to %s: %w", types.ErrPersistence, path, err)
	}
	return len(records), nil
}

// Import reads a JSONL export and creates one new item per valid record.
// IDs in the file are ignored; the catalog assigns fresh ones. Lines that
// are not records are dropped. Records that fail validation are skipped and
// counted.
func (b *Backend) Import(path string) (imported, skipped int, err error) {
	records, err := b.readRecords(path)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: importing %s: %w", types.ErrPersistence, path, err)
	}

	for _, rec := range records {
		if _, err := b.Create(rec.Title, rec.ExpiryDate, rec.ImagePath); err != nil {
			if types.IsUserError(err) {
				b.log.Warn().Err(err).Str("title", rec.Title).Msg("skipping import record")
				skipped++
				continue
			}
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

// readRecords decodes one record per non-empty line of path.
func (b *Backend) readRecords(path string) ([]foodItemJSONLRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []foodItemJSONLRecord
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		var rec foodItemJSONLRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			b.log.Debug().Err(err).Int("line", line).Msg("dropping malformed import line")
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// writeRecords streams records into a temp file next to path, syncs it and
// renames it over path.
func writeRecords(path string, records []foodItemJSONLRecord) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.jsonl")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding food item %d: %w", rec.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
