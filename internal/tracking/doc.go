// Package tracking persists discovered items in SQLite and owns the item
// lifecycle state machine.
//
// The Store is the single source of truth for which state an item is in. Each
// item is keyed by an identity derived from its slash-normalized relative
// path, so the key survives metadata changes and repeated runs. All state
// changes go through Transition, which checks the transition table inside a
// transaction; Upsert and Remove are reserved for the scanner's reconciliation.
//
// Schema changes bump schemaVersion in schema.go; operators delete
// tracker.db to adopt a new schema.
package tracking
