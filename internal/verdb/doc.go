// Package verdb provides a temporal, append-style entity versioning engine.
//
// # Overview
//
// The package centers around [Table], a generic container storing every
// version of every logical record of one entity type in a single columnar
// blob held by a [blob.Store]. Rows are never mutated or deleted in place:
// Create appends a first version, Update appends a superseding version and
// flips the previous one's IsCurrent flag by rewriting the whole table.
// There is no delete operation.
//
// Each row embeds a [Version] block: ID identifies one immutable version,
// InstanceID groups all versions of one logical record, CreatedDate orders
// a version history, and IsCurrent marks the single live version per
// instance.
//
// # Concurrency: optimistic writes
//
// Every mutation is a whole-table read-modify-write. Writes are conditional
// on the precondition tag returned by the store read, so a concurrent writer
// that landed in between fails the overwrite and the engine re-reads and
// recomputes instead of silently discarding the other writer's version. A
// per-table in-process mutex keeps local writers from burning retries
// against each other. Nothing is cached across calls; every read goes back
// to the store.
//
// # File format
//
// One parquet blob per entity at "<entity>/<entity>.parquet", all versions
// co-located, no manifest or index file. The codec is injected and operates
// on the entire table content at once.
package verdb
