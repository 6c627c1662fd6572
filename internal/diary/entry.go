// Package diary provides the food diary entities on top of the versioning
// engine.
//
// Each entity type owns one versioned table; the services here only add
// input validation and convenience views. All history handling lives in
// verdb.
package diary

import (
	"context"
	"fmt"
	"time"

	"github.com/maruel/ksid"
	"github.com/nutrilog/nutrilog/internal/blob"
	"github.com/nutrilog/nutrilog/internal/verdb"
)

// Entry is one food diary entry. Versioning fields come from the embedded
// block; the rest is entity data.
type Entry struct {
	verdb.Version
	UserID     string    `json:"user_id" parquet:"UserId" jsonschema:"description=Owner of the diary entry"`
	Food       string    `json:"food" parquet:"Food" jsonschema:"description=What was eaten"`
	ConsumedAt time.Time `json:"consumed_at" parquet:"ConsumedAt,timestamp(microsecond)" jsonschema:"description=When the food was consumed (UTC)"`
	Notes      string    `json:"notes,omitempty" parquet:"Notes" jsonschema:"description=Free-form notes"`
}

// EntryService manages diary entries.
type EntryService struct {
	table *verdb.Table[Entry, *Entry]
}

// NewEntryService creates the diary entry service backed by store.
func NewEntryService(store blob.Store) (*EntryService, error) {
	table, err := verdb.NewTable[Entry, *Entry](store, "diary_entries", verdb.Parquet[Entry]{})
	if err != nil {
		return nil, fmt.Errorf("failed to create diary_entries table: %w", err)
	}
	return &EntryService{table: table}, nil
}

// Create records a new entry and returns its InstanceID.
func (s *EntryService) Create(ctx context.Context, e Entry) (ksid.ID, error) {
	if err := validateEntry(&e); err != nil {
		return 0, err
	}
	return s.table.Create(ctx, e)
}

// Update supersedes the current version of an entry with a full replacement
// payload and returns the new version's ID. Values not present on e are not
// carried forward from the previous version.
func (s *EntryService) Update(ctx context.Context, instanceID ksid.ID, e Entry) (ksid.ID, error) {
	if err := validateEntry(&e); err != nil {
		return 0, err
	}
	return s.table.Update(ctx, instanceID, e)
}

// Current returns the live version of every entry.
func (s *EntryService) Current(ctx context.Context) ([]Entry, error) {
	var out []Entry
	for e, err := range s.table.Current(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// CurrentForUser returns the live entries of one user.
func (s *EntryService) CurrentForUser(ctx context.Context, userID string) ([]Entry, error) {
	var out []Entry
	for e, err := range s.table.Current(ctx) {
		if err != nil {
			return nil, err
		}
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// History returns every version of one entry, oldest first.
func (s *EntryService) History(ctx context.Context, instanceID ksid.ID) ([]Entry, error) {
	return s.table.History(ctx, instanceID)
}

// Schema describes the entry table columns.
func (s *EntryService) Schema() []verdb.Column {
	return s.table.Schema()
}

func validateEntry(e *Entry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalid)
	}
	if e.Food == "" {
		return fmt.Errorf("%w: food is required", ErrInvalid)
	}
	if !e.ConsumedAt.IsZero() {
		e.ConsumedAt = e.ConsumedAt.UTC().Truncate(time.Microsecond)
	}
	return nil
}
