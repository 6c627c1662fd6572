package verdb

import (
	"time"

	"github.com/maruel/ksid"
)

// Version is the block of versioning fields embedded in every table row.
//
// The engine owns these fields: Create and Update overwrite whatever the
// caller put in them.
type Version struct {
	ID          ksid.ID   `json:"id" parquet:"Id" jsonschema:"description=Unique identifier of this specific version"`
	InstanceID  ksid.ID   `json:"instance_id" parquet:"InstanceId" jsonschema:"description=Stable identifier of the logical record this version belongs to"`
	CreatedDate time.Time `json:"created_date" parquet:"CreatedDate,timestamp(microsecond)" jsonschema:"description=Version creation time in UTC with microsecond resolution"`
	IsCurrent   bool      `json:"is_current" parquet:"IsCurrent" jsonschema:"description=Whether this version is the live state of its instance"`
}

// Ver returns the version block. Promoted from the embedded struct, it is
// what satisfies [Row] for concrete row types.
func (v *Version) Ver() *Version {
	return v
}

// Row constrains table row types: a struct embedding [Version], addressed
// through its pointer.
type Row[T any] interface {
	*T
	Ver() *Version
}
