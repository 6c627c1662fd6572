package verdb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/maruel/ksid"
	"github.com/nutrilog/nutrilog/internal/blob"
)

// conflictRetries bounds how often a mutation re-reads and recomputes after
// losing the optimistic write race.
const conflictRetries = 3

var entityNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Table owns the full version history of one entity type: one schema, one
// blob path, all versions co-located.
//
// The type parameters follow the usual pointer-constraint pattern:
// T is the row struct (embedding [Version]), PT its pointer type.
type Table[T any, PT Row[T]] struct {
	store   blob.Store
	codec   Codec[T]
	entity  string
	path    string
	columns []Column

	// Serializes writers within this process so they contend on the mutex
	// instead of on store conflicts. Cross-process writers are handled by
	// the conditional write.
	mu sync.Mutex

	now   func() time.Time
	newID func() ksid.ID
}

// NewTable creates the table engine for one entity type backed by store.
//
// The entity name derives the blob path "<entity>/<entity>.parquet". The
// composed schema is validated here, before any I/O: an entity field reusing
// a reserved versioning column name fails with [*SchemaConflictError].
func NewTable[T any, PT Row[T]](store blob.Store, entity string, codec Codec[T]) (*Table[T, PT], error) {
	if !entityNameRe.MatchString(entity) {
		return nil, fmt.Errorf("invalid entity name: %q", entity)
	}
	columns, err := composeColumns[T]()
	if err != nil {
		return nil, err
	}
	return &Table[T, PT]{
		store:   store,
		codec:   codec,
		entity:  entity,
		path:    entity + "/" + entity + ".parquet",
		columns: columns,
		now:     time.Now,
		newID:   ksid.NewID,
	}, nil
}

// Entity returns the entity name the table was created with.
func (t *Table[T, PT]) Entity() string {
	return t.entity
}

// Schema returns the composed column set: the versioning columns followed by
// the entity's own fields.
func (t *Table[T, PT]) Schema() []Column {
	return slices.Clone(t.columns)
}

// All returns an iterator over every version ever written, historical ones
// included. The sequence is restartable and lazy: each consumption re-reads
// the backing blob, nothing is cached across calls. A missing blob yields an
// empty sequence, not an error, and is not created as a side effect. No
// ordering is guaranteed beyond storage order.
func (t *Table[T, PT]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		rows, _, err := t.load(ctx)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, row := range rows {
			if !yield(row, nil) {
				return
			}
		}
	}
}

// Current returns [Table.All] filtered to live versions. It performs no
// distinctness check; it exposes whatever the write path guaranteed.
func (t *Table[T, PT]) Current(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for row, err := range t.All(ctx) {
			if err != nil {
				yield(row, err)
				return
			}
			if !PT(&row).Ver().IsCurrent {
				continue
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

// History returns every version of one instance, ascending by CreatedDate.
// An unknown instance yields an empty slice, not an error.
func (t *Table[T, PT]) History(ctx context.Context, instanceID ksid.ID) ([]T, error) {
	rows, _, err := t.load(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	for i := range rows {
		if PT(&rows[i]).Ver().InstanceID == instanceID {
			out = append(out, rows[i])
		}
	}
	slices.SortFunc(out, func(a, b T) int {
		return PT(&a).Ver().CreatedDate.Compare(PT(&b).Ver().CreatedDate)
	})
	return out, nil
}

// Create appends the first version of a new instance and returns its
// InstanceID. The version block of row is overwritten: a fresh identifier
// serves as both ID and InstanceID, CreatedDate is now, IsCurrent is true.
func (t *Table[T, PT]) Create(ctx context.Context, row T) (ksid.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.newID()
	v := PT(&row).Ver()
	v.ID = id
	v.InstanceID = id
	v.CreatedDate = t.timestamp(time.Time{})
	v.IsCurrent = true

	for attempt := 0; ; attempt++ {
		rows, tag, err := t.load(ctx)
		if err != nil {
			return 0, err
		}
		if err := t.save(ctx, append(rows, row), tag); err != nil {
			if errors.Is(err, blob.ErrConflict) && attempt < conflictRetries {
				continue
			}
			return 0, err
		}
		return id, nil
	}
}

// Update supersedes the current version of an instance with a new one built
// from row, and returns the new version's ID. The whole table is read, every
// live row of the instance is flipped to not-current (all of them, should a
// prior race have left more than one), and exactly one new current version
// is appended. Fails with [ErrInstanceNotFound] when the instance has no
// live version; the table is left untouched in that case.
//
// Fields omitted from row are not carried forward from the previous
// version: the new version is built from row alone.
func (t *Table[T, PT]) Update(ctx context.Context, instanceID ksid.ID, row T) (ksid.ID, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	newID := t.newID()
	for attempt := 0; ; attempt++ {
		rows, tag, err := t.load(ctx)
		if err != nil {
			return 0, err
		}

		var latest time.Time
		live := false
		for i := range rows {
			rv := PT(&rows[i]).Ver()
			if rv.InstanceID != instanceID {
				continue
			}
			if rv.CreatedDate.After(latest) {
				latest = rv.CreatedDate
			}
			if rv.IsCurrent {
				rv.IsCurrent = false
				live = true
			}
		}
		if !live {
			return 0, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
		}

		v := PT(&row).Ver()
		v.ID = newID
		v.InstanceID = instanceID
		v.CreatedDate = t.timestamp(latest)
		v.IsCurrent = true

		if err := t.save(ctx, append(rows, row), tag); err != nil {
			if errors.Is(err, blob.ErrConflict) && attempt < conflictRetries {
				continue
			}
			return 0, err
		}
		return newID, nil
	}
}

// load reads and decodes the whole table. A missing blob is a normal state
// and decodes to an empty record set with the zero precondition tag.
func (t *Table[T, PT]) load(ctx context.Context) ([]T, blob.Tag, error) {
	exists, err := t.store.Exists(ctx, t.path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check table %s: %w", t.entity, err)
	}
	if !exists {
		return nil, "", nil
	}
	data, tag, err := t.store.ReadAll(ctx, t.path)
	if err != nil {
		// The blob can vanish between the existence check and the read
		// only if something else owns the path; treat it as empty.
		if errors.Is(err, blob.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to read table %s: %w", t.entity, err)
	}
	rows, err := t.codec.Decode(data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode table %s: %w", t.entity, err)
	}
	return rows, tag, nil
}

// save encodes the whole record set and conditionally overwrites the blob.
func (t *Table[T, PT]) save(ctx context.Context, rows []T, expect blob.Tag) error {
	data, err := t.codec.Encode(rows)
	if err != nil {
		return fmt.Errorf("failed to encode table %s: %w", t.entity, err)
	}
	if err := t.store.WriteAll(ctx, t.path, data, expect); err != nil {
		if errors.Is(err, blob.ErrConflict) {
			return err
		}
		return fmt.Errorf("failed to write table %s: %w", t.entity, err)
	}
	return nil
}

// timestamp returns the write time for a new version: now in UTC truncated
// to microseconds, bumped past latest so CreatedDate stays strictly
// increasing within an instance even when the clock did not advance.
func (t *Table[T, PT]) timestamp(latest time.Time) time.Time {
	now := t.now().UTC().Truncate(time.Microsecond)
	if !now.After(latest) {
		now = latest.Add(time.Microsecond)
	}
	return now
}
