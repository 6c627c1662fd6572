package verdb

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInstanceNotFound is returned by [Table.Update] when the instance has no
// current version: it never existed, or a prior table rewrite left it
// without a live row.
var ErrInstanceNotFound = errors.New("no current version for instance")

// SchemaConflictError reports entity fields that redeclare reserved
// versioning field names. It is returned at table construction time, before
// any I/O.
type SchemaConflictError struct {
	// Fields holds every colliding column name, sorted.
	Fields []string
}

func (e *SchemaConflictError) Error() string {
	return fmt.Sprintf("entity fields redeclare reserved versioning fields: %s", strings.Join(e.Fields, ", "))
}
