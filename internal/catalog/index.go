package catalog

import (
	"context"
	"fmt"
	"time"

	"brewsync/internal"
	"brewsync/internal/storage"
)

const snapshotMetadataKey = "catalog.last_snapshot"

// InventoryReader lists one inventory category.
type InventoryReader interface {
	ListInventory(ctx context.Context, t internal.IngredientType) ([]internal.CatalogEntry, error)
}

// Snapshot is the catalog contents per category at one point in time.
// A category that failed to load has an entry in Errors and none in Entries.
type Snapshot struct {
	Entries map[internal.IngredientType][]internal.CatalogEntry
	Errors  map[internal.IngredientType]error
	TakenAt time.Time
}

func newSnapshot(takenAt time.Time) *Snapshot {
	return &Snapshot{
		Entries: map[internal.IngredientType][]internal.CatalogEntry{},
		Errors:  map[internal.IngredientType]error{},
		TakenAt: takenAt,
	}
}

// FetchSnapshot reads the given categories one after another. A failing
// category does not stop the others.
func FetchSnapshot(ctx context.Context, api InventoryReader, types []internal.IngredientType) *Snapshot {
	snap := newSnapshot(time.Now().UTC())
	for _, t := range types {
		entries, err := api.ListInventory(ctx, t)
		if err != nil {
			snap.Errors[t] = err
			continue
		}
		snap.Entries[t] = entries
	}
	return snap
}

// For returns the entries of one category in catalog order.
func (s *Snapshot) For(t internal.IngredientType) []internal.CatalogEntry {
	if s == nil {
		return nil
	}
	return s.Entries[t]
}

func (s *Snapshot) Count() int {
	n := 0
	for _, entries := range s.Entries {
		n += len(entries)
	}
	return n
}

// Save replaces the cached snapshot for every category that loaded.
func (s *Snapshot) Save(db *storage.DB) error {
	for _, t := range internal.IngredientTypes {
		entries, ok := s.Entries[t]
		if !ok {
			continue
		}
		if err := db.ReplaceCatalogEntries(t, entries); err != nil {
			return fmt.Errorf("save %s snapshot: %w", t.CatalogPath(), err)
		}
	}
	return db.SetMetadata(snapshotMetadataKey, s.TakenAt.Format(time.RFC3339))
}

// LoadSnapshot reads the cached snapshot for offline analysis.
func LoadSnapshot(db *storage.DB) (*Snapshot, error) {
	last, err := db.GetMetadata(snapshotMetadataKey)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, fmt.Errorf("no catalog snapshot stored: run catalog:snapshot first")
	}
	takenAt, _ := time.Parse(time.RFC3339, *last)

	snap := newSnapshot(takenAt)
	for _, t := range internal.IngredientTypes {
		entries, err := db.ListCatalogEntries(t)
		if err != nil {
			return nil, err
		}
		snap.Entries[t] = entries
	}
	return snap, nil
}
