package verdb

import (
	"testing"
	"time"

	"github.com/maruel/ksid"
)

func TestParquetCodec(t *testing.T) {
	codec := Parquet[entryRow]{}
	id := ksid.NewID()
	created := time.Date(2026, 8, 28, 12, 34, 56, 789123000, time.UTC)

	data, err := codec.Encode([]entryRow{{
		Version:    Version{ID: id, InstanceID: id, CreatedDate: created, IsCurrent: true},
		UserID:     "u1",
		Food:       "eggs",
		ConsumedAt: created,
		Notes:      "breakfast",
	}})
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	rows, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Decode returned %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.ID != id || got.InstanceID != id {
		t.Errorf("ids = %s, %s, want %s", got.ID, got.InstanceID, id)
	}
	// Timestamps carry microsecond precision through the columnar format.
	if got.CreatedDate.UnixMicro() != created.UnixMicro() {
		t.Errorf("CreatedDate = %v, want %v", got.CreatedDate, created)
	}
	if !got.IsCurrent || got.Food != "eggs" || got.Notes != "breakfast" {
		t.Errorf("row = %+v", got)
	}
}
