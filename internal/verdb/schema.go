// Handles schema composition and reflection-based column derivation.

package verdb

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/maruel/ksid"
)

// ColumnType represents the semantic type of a table column.
type ColumnType string

const (
	ColumnTypeText   ColumnType = "text"
	ColumnTypeNumber ColumnType = "number"
	ColumnTypeBool   ColumnType = "bool"
	ColumnTypeDate   ColumnType = "date"
	ColumnTypeJSONB  ColumnType = "jsonb"
)

// Reserved versioning column names, contributed by the embedded [Version].
const (
	colID          = "Id"
	colInstanceID  = "InstanceId"
	colCreatedDate = "CreatedDate"
	colIsCurrent   = "IsCurrent"
)

// Column describes one column of a composed table schema.
type Column struct {
	Name        string     `json:"name"`
	Type        ColumnType `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

// versionColumns are the columns every table starts with, in storage order.
func versionColumns() []Column {
	return []Column{
		{Name: colID, Type: ColumnTypeText, Required: true, Description: "Unique identifier of this specific version"},
		{Name: colInstanceID, Type: ColumnTypeText, Required: true, Description: "Stable identifier of the logical record"},
		{Name: colCreatedDate, Type: ColumnTypeDate, Required: true, Description: "Version creation time in UTC"},
		{Name: colIsCurrent, Type: ColumnTypeBool, Required: true, Description: "Whether this version is the live state"},
	}
}

// composeColumns builds the full column set for row type T: the versioning
// columns followed by the entity's own fields. It fails with
// [*SchemaConflictError] if any entity field reuses a reserved column name,
// and rejects types that do not embed [Version].
func composeColumns[T any]() ([]Column, error) {
	structType := reflect.TypeFor[T]()
	if structType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("row type must be a struct, got %s", structType.Kind())
	}

	reserved := map[string]bool{colID: true, colInstanceID: true, colCreatedDate: true, colIsCurrent: true}
	versionType := reflect.TypeFor[Version]()
	embedsVersion := false
	var conflicts []string
	for i := range structType.NumField() {
		field := structType.Field(i)
		if field.Anonymous && field.Type == versionType {
			embedsVersion = true
			continue
		}
		name := parquetFieldName(&field)
		if name == "" {
			continue
		}
		if reserved[name] {
			conflicts = append(conflicts, name)
		}
	}
	if !embedsVersion {
		return nil, fmt.Errorf("row type %s must embed verdb.Version", structType)
	}
	if len(conflicts) > 0 {
		slices.Sort(conflicts)
		return nil, &SchemaConflictError{Fields: conflicts}
	}

	// Generate a JSON Schema from the type to pick up descriptions from
	// `jsonschema:"description=..."` tags and the required field set.
	r := jsonschema.Reflector{Anonymous: true, DoNotReference: true}
	schema := r.ReflectFromType(structType)
	required := make(map[string]bool)
	for _, name := range schema.Required {
		required[name] = true
	}

	columns := versionColumns()
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		jsonName := pair.Key
		prop := pair.Value

		// Properties promoted from the embedded Version have no direct
		// field; they are already covered by versionColumns.
		field, ok := directField(structType, jsonName)
		if !ok {
			continue
		}
		columns = append(columns, Column{
			Name:        parquetFieldName(&field),
			Type:        goTypeToColumnType(field.Type),
			Required:    required[jsonName],
			Description: prop.Description,
		})
	}
	return columns, nil
}

// directField finds the non-embedded struct field with the given JSON name.
func directField(structType reflect.Type, jsonName string) (reflect.StructField, bool) {
	for i := range structType.NumField() {
		field := structType.Field(i)
		if field.Anonymous || !field.IsExported() {
			continue
		}
		if jsonFieldName(&field) == jsonName {
			return field, true
		}
	}
	return reflect.StructField{}, false
}

// parquetFieldName returns the storage column name for a struct field, or ""
// if the field is excluded from storage.
func parquetFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("parquet")
	if tag == "" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	switch name {
	case "-":
		return ""
	case "":
		return field.Name
	}
	return name
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(field *reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" || tag == "-" {
		return field.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// goTypeToColumnType maps Go types to column types.
func goTypeToColumnType(t reflect.Type) ColumnType {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	// Identifiers serialize as strings at the API boundary.
	if t == reflect.TypeFor[ksid.ID]() {
		return ColumnTypeText
	}
	if t == reflect.TypeFor[time.Time]() {
		return ColumnTypeDate
	}
	switch t.Kind() {
	case reflect.String:
		return ColumnTypeText
	case reflect.Bool:
		return ColumnTypeBool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return ColumnTypeNumber
	case reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return ColumnTypeJSONB
	default:
		return ColumnTypeText
	}
}
