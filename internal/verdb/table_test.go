package verdb

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/maruel/ksid"
	"github.com/nutrilog/nutrilog/internal/blob"
)

// entryRow mirrors a food diary entry, the entity the engine was grown for.
type entryRow struct {
	Version
	UserID     string    `json:"user_id" parquet:"UserId" jsonschema:"description=Owner of the entry"`
	Food       string    `json:"food" parquet:"Food" jsonschema:"description=What was eaten"`
	ConsumedAt time.Time `json:"consumed_at" parquet:"ConsumedAt,timestamp(microsecond)"`
	Notes      string    `json:"notes,omitempty" parquet:"Notes"`
}

func setupTable(t *testing.T) (*Table[entryRow, *entryRow], *blob.MemStore) {
	t.Helper()
	store := blob.NewMemStore()
	table, err := NewTable[entryRow, *entryRow](store, "diary_entries", Parquet[entryRow]{})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	return table, store
}

func collectAll(t *testing.T, seq func(func(entryRow, error) bool)) []entryRow {
	t.Helper()
	var out []entryRow
	for row, err := range seq {
		if err != nil {
			t.Fatalf("iteration error: %v", err)
		}
		out = append(out, row)
	}
	return out
}

func TestNewTable(t *testing.T) {
	store := blob.NewMemStore()

	t.Run("invalid entity name", func(t *testing.T) {
		for _, name := range []string{"", "Diary", "diary entries", "1st", "a/b"} {
			if _, err := NewTable[entryRow, *entryRow](store, name, Parquet[entryRow]{}); err == nil {
				t.Errorf("NewTable(%q) did not fail", name)
			}
		}
	})

	t.Run("schema conflict", func(t *testing.T) {
		type collidingRow struct {
			Version
			RecordID string `json:"record_id" parquet:"Id"`
			Flag     string `json:"flag" parquet:"IsCurrent"`
			Food     string `json:"food" parquet:"Food"`
		}
		_, err := NewTable[collidingRow, *collidingRow](store, "colliding", Parquet[collidingRow]{})
		var conflict *SchemaConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("NewTable error = %v, want SchemaConflictError", err)
		}
		want := []string{"Id", "IsCurrent"}
		if len(conflict.Fields) != len(want) {
			t.Fatalf("conflict fields = %v, want %v", conflict.Fields, want)
		}
		for i, name := range want {
			if conflict.Fields[i] != name {
				t.Errorf("conflict field %d = %q, want %q", i, conflict.Fields[i], name)
			}
		}
	})

	t.Run("missing version block", func(t *testing.T) {
		type bareRow struct {
			Food string `json:"food"`
		}
		// bareRow has no Ver method, so the Row constraint cannot apply;
		// composeColumns is checked directly.
		if _, err := composeColumns[bareRow](); err == nil {
			t.Error("composeColumns did not reject a row without Version")
		}
	})

	t.Run("schema", func(t *testing.T) {
		table, _ := setupTable(t)
		cols := table.Schema()
		wantNames := []string{"Id", "InstanceId", "CreatedDate", "IsCurrent", "UserId", "Food", "ConsumedAt", "Notes"}
		if len(cols) != len(wantNames) {
			t.Fatalf("Schema() has %d columns, want %d: %+v", len(cols), len(wantNames), cols)
		}
		for i, name := range wantNames {
			if cols[i].Name != name {
				t.Errorf("column %d = %q, want %q", i, cols[i].Name, name)
			}
		}
		byName := make(map[string]Column)
		for _, c := range cols {
			byName[c.Name] = c
		}
		if got := byName["ConsumedAt"].Type; got != ColumnTypeDate {
			t.Errorf("ConsumedAt type = %q, want %q", got, ColumnTypeDate)
		}
		if got := byName["Food"].Description; got != "What was eaten" {
			t.Errorf("Food description = %q", got)
		}
		if !byName["Id"].Required {
			t.Error("Id column not marked required")
		}
	})
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	table, store := setupTable(t)

	consumed := time.Date(2026, 8, 28, 7, 30, 0, 123456000, time.UTC)
	iid, err := table.Create(ctx, entryRow{
		// Caller-supplied versioning fields are never trusted.
		Version:    Version{IsCurrent: false, InstanceID: ksid.ID(42)},
		UserID:     "u1",
		Food:       "eggs",
		ConsumedAt: consumed,
		Notes:      "breakfast",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if iid.IsZero() {
		t.Fatal("Create returned zero InstanceID")
	}

	history, err := table.History(ctx, iid)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("History has %d versions, want 1", len(history))
	}
	got := history[0]
	if got.ID != iid || got.InstanceID != iid {
		t.Errorf("Id = %s, InstanceId = %s, want both %s", got.ID, got.InstanceID, iid)
	}
	if !got.IsCurrent {
		t.Error("created version is not current")
	}
	if got.CreatedDate.IsZero() {
		t.Error("CreatedDate not assigned")
	}
	if got.UserID != "u1" || got.Food != "eggs" || got.Notes != "breakfast" {
		t.Errorf("data fields = %+v", got)
	}
	if got.ConsumedAt.UnixMicro() != consumed.UnixMicro() {
		t.Errorf("ConsumedAt = %v, want %v", got.ConsumedAt, consumed)
	}

	if ok, _ := store.Exists(ctx, "diary_entries/diary_entries.parquet"); !ok {
		t.Error("backing blob not written at the derived path")
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("history and current flags", func(t *testing.T) {
		table, _ := setupTable(t)
		iid, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		id2, err := table.Update(ctx, iid, entryRow{UserID: "u1", Food: "toast"})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		id3, err := table.Update(ctx, iid, entryRow{UserID: "u1", Food: "oats"})
		if err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if id2 == iid || id3 == iid || id2 == id3 {
			t.Errorf("ids not unique: %s, %s, %s", iid, id2, id3)
		}

		history, err := table.History(ctx, iid)
		if err != nil {
			t.Fatalf("History error: %v", err)
		}
		if len(history) != 3 {
			t.Fatalf("History has %d versions, want 3", len(history))
		}
		for i := 1; i < len(history); i++ {
			if !history[i].CreatedDate.After(history[i-1].CreatedDate) {
				t.Errorf("CreatedDate not strictly increasing at %d: %v, %v", i, history[i-1].CreatedDate, history[i].CreatedDate)
			}
		}
		for i, want := range []bool{false, false, true} {
			if history[i].IsCurrent != want {
				t.Errorf("version %d IsCurrent = %v, want %v", i, history[i].IsCurrent, want)
			}
		}
		if history[2].ID != id3 || history[2].InstanceID != iid {
			t.Errorf("last version Id = %s, InstanceId = %s", history[2].ID, history[2].InstanceID)
		}
	})

	t.Run("unknown instance", func(t *testing.T) {
		table, store := setupTable(t)
		if _, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"}); err != nil {
			t.Fatalf("Create error: %v", err)
		}
		before, beforeTag, err := store.ReadAll(ctx, "diary_entries/diary_entries.parquet")
		if err != nil {
			t.Fatalf("ReadAll error: %v", err)
		}

		_, err = table.Update(ctx, ksid.NewID(), entryRow{UserID: "u1", Food: "toast"})
		if !errors.Is(err, ErrInstanceNotFound) {
			t.Fatalf("Update error = %v, want ErrInstanceNotFound", err)
		}

		after, afterTag, err := store.ReadAll(ctx, "diary_entries/diary_entries.parquet")
		if err != nil {
			t.Fatalf("ReadAll error: %v", err)
		}
		if afterTag != beforeTag || string(after) != string(before) {
			t.Error("failed update modified the table")
		}
		if _, err := table.Update(ctx, 0, entryRow{}); !errors.Is(err, ErrInstanceNotFound) {
			t.Errorf("Update(zero id) error = %v, want ErrInstanceNotFound", err)
		}
	})

	t.Run("empty table", func(t *testing.T) {
		table, _ := setupTable(t)
		if _, err := table.Update(ctx, ksid.NewID(), entryRow{Food: "toast"}); !errors.Is(err, ErrInstanceNotFound) {
			t.Errorf("Update on empty table error = %v, want ErrInstanceNotFound", err)
		}
	})

	t.Run("other instances untouched", func(t *testing.T) {
		table, _ := setupTable(t)
		a, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		b, err := table.Create(ctx, entryRow{UserID: "u2", Food: "rice"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if _, err := table.Update(ctx, a, entryRow{UserID: "u1", Food: "toast"}); err != nil {
			t.Fatalf("Update error: %v", err)
		}
		historyB, err := table.History(ctx, b)
		if err != nil {
			t.Fatalf("History error: %v", err)
		}
		if len(historyB) != 1 || !historyB[0].IsCurrent || historyB[0].Food != "rice" {
			t.Errorf("instance b disturbed: %+v", historyB)
		}
	})
}

// TestScenario covers the canonical diary flow: create eggs, update to toast.
func TestScenario(t *testing.T) {
	ctx := context.Background()
	table, _ := setupTable(t)
	t0 := time.Date(2026, 8, 28, 8, 0, 0, 0, time.UTC)

	iid, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs", ConsumedAt: t0, Notes: "breakfast"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	id2, err := table.Update(ctx, iid, entryRow{UserID: "u1", Food: "toast", ConsumedAt: t0, Notes: "breakfast, added toast"})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	history, err := table.History(ctx, iid)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History has %d versions, want 2", len(history))
	}
	if history[0].ID != iid || history[0].IsCurrent || history[0].Food != "eggs" {
		t.Errorf("first version = %+v", history[0])
	}
	if history[1].ID != id2 || !history[1].IsCurrent || history[1].Food != "toast" {
		t.Errorf("second version = %+v", history[1])
	}

	var current []entryRow
	for row, err := range table.Current(ctx) {
		if err != nil {
			t.Fatalf("Current error: %v", err)
		}
		if row.InstanceID == iid {
			current = append(current, row)
		}
	}
	if len(current) != 1 || current[0].ID != id2 {
		t.Errorf("current view = %+v, want exactly the toast version", current)
	}
}

// TestCurrentView checks that after sequential writes across several
// instances the current view holds exactly one row per instance.
func TestCurrentView(t *testing.T) {
	ctx := context.Background()
	table, _ := setupTable(t)

	const instances = 4
	ids := make([]ksid.ID, instances)
	for i := range instances {
		iid, err := table.Create(ctx, entryRow{UserID: fmt.Sprintf("u%d", i), Food: "eggs"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		ids[i] = iid
	}
	for _, iid := range ids[:2] {
		if _, err := table.Update(ctx, iid, entryRow{Food: "toast"}); err != nil {
			t.Fatalf("Update error: %v", err)
		}
		if _, err := table.Update(ctx, iid, entryRow{Food: "oats"}); err != nil {
			t.Fatalf("Update error: %v", err)
		}
	}

	seen := make(map[ksid.ID]int)
	for row, err := range table.Current(ctx) {
		if err != nil {
			t.Fatalf("Current error: %v", err)
		}
		seen[row.InstanceID]++
	}
	if len(seen) != instances {
		t.Fatalf("current view has %d instances, want %d", len(seen), instances)
	}
	for iid, n := range seen {
		if n != 1 {
			t.Errorf("instance %s has %d current versions, want 1", iid, n)
		}
	}
}

func TestEmptyTable(t *testing.T) {
	ctx := context.Background()
	table, store := setupTable(t)

	if rows := collectAll(t, table.All(ctx)); len(rows) != 0 {
		t.Errorf("All on empty table = %+v", rows)
	}
	if rows := collectAll(t, table.Current(ctx)); len(rows) != 0 {
		t.Errorf("Current on empty table = %+v", rows)
	}
	history, err := table.History(ctx, ksid.NewID())
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("History on empty table = %+v", history)
	}

	// Reads must not create the blob as a side effect.
	if ok, _ := store.Exists(ctx, "diary_entries/diary_entries.parquet"); ok {
		t.Error("read created the backing blob")
	}
}

// TestAllRestartable checks that the sequence re-reads the store on every
// consumption instead of caching.
func TestAllRestartable(t *testing.T) {
	ctx := context.Background()
	table, _ := setupTable(t)

	if _, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	seq := table.All(ctx)
	if rows := collectAll(t, seq); len(rows) != 1 {
		t.Fatalf("first consumption = %d rows, want 1", len(rows))
	}
	if _, err := table.Create(ctx, entryRow{UserID: "u2", Food: "rice"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rows := collectAll(t, seq); len(rows) != 2 {
		t.Errorf("second consumption = %d rows, want 2 after append", len(rows))
	}
}

// TestSelfHealing checks that an update collapses a structurally impossible
// state (several current versions of one instance) into a single one.
func TestSelfHealing(t *testing.T) {
	ctx := context.Background()
	table, store := setupTable(t)

	iid := ksid.NewID()
	codec := Parquet[entryRow]{}
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	corrupted, err := codec.Encode([]entryRow{
		{Version: Version{ID: iid, InstanceID: iid, CreatedDate: base, IsCurrent: true}, UserID: "u1", Food: "eggs"},
		{Version: Version{ID: ksid.NewID(), InstanceID: iid, CreatedDate: base.Add(time.Second), IsCurrent: true}, UserID: "u1", Food: "toast"},
	})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if err := store.WriteAll(ctx, "diary_entries/diary_entries.parquet", corrupted, ""); err != nil {
		t.Fatalf("WriteAll error: %v", err)
	}

	newID, err := table.Update(ctx, iid, entryRow{UserID: "u1", Food: "oats"})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	history, err := table.History(ctx, iid)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("History has %d versions, want 3", len(history))
	}
	currents := 0
	for _, row := range history {
		if row.IsCurrent {
			currents++
			if row.ID != newID {
				t.Errorf("current version Id = %s, want %s", row.ID, newID)
			}
		}
	}
	if currents != 1 {
		t.Errorf("current versions = %d, want 1", currents)
	}
}

// conflictingStore injects write conflicts to exercise the retry loop.
type conflictingStore struct {
	blob.Store
	remaining int
	writes    int
}

func (cs *conflictingStore) WriteAll(ctx context.Context, path string, data []byte, expect blob.Tag) error {
	cs.writes++
	if cs.remaining != 0 {
		cs.remaining--
		return fmt.Errorf("%w: %s", blob.ErrConflict, path)
	}
	return cs.Store.WriteAll(ctx, path, data, expect)
}

func TestWriteConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("retries then succeeds", func(t *testing.T) {
		cs := &conflictingStore{Store: blob.NewMemStore(), remaining: 2}
		table, err := NewTable[entryRow, *entryRow](cs, "diary_entries", Parquet[entryRow]{})
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		iid, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		if cs.writes != 3 {
			t.Errorf("writes = %d, want 3", cs.writes)
		}
		history, err := table.History(ctx, iid)
		if err != nil || len(history) != 1 {
			t.Errorf("History = %+v, %v", history, err)
		}
	})

	t.Run("gives up after bounded retries", func(t *testing.T) {
		cs := &conflictingStore{Store: blob.NewMemStore(), remaining: -1}
		table, err := NewTable[entryRow, *entryRow](cs, "diary_entries", Parquet[entryRow]{})
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if _, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"}); !errors.Is(err, blob.ErrConflict) {
			t.Fatalf("Create error = %v, want ErrConflict", err)
		}
		if cs.writes != conflictRetries+1 {
			t.Errorf("writes = %d, want %d", cs.writes, conflictRetries+1)
		}
	})
}

// TestTimestampMonotonic pins the strict ordering guarantee under a frozen
// clock.
func TestTimestampMonotonic(t *testing.T) {
	ctx := context.Background()
	table, _ := setupTable(t)
	frozen := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	table.now = func() time.Time { return frozen }

	iid, err := table.Create(ctx, entryRow{UserID: "u1", Food: "eggs"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	for range 3 {
		if _, err := table.Update(ctx, iid, entryRow{UserID: "u1", Food: "toast"}); err != nil {
			t.Fatalf("Update error: %v", err)
		}
	}
	history, err := table.History(ctx, iid)
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	for i := 1; i < len(history); i++ {
		if !history[i].CreatedDate.After(history[i-1].CreatedDate) {
			t.Errorf("CreatedDate not strictly increasing at %d under frozen clock", i)
		}
	}
}
