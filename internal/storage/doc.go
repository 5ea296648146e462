// Package storage provides the namespaced JSON document store backing
// managed definitions (items, things, rules) and runtime bookkeeping.
//
// # Architecture
//
//	┌──────────────────┐   ┌───────────────┐   ┌──────────────────┐
//	│ managed providers│──▶│     Store     │──▶│ storage_entries  │
//	│ engine, restore  │   │ JSON per key  │   │ (SQLite table)   │
//	└──────────────────┘   └───────────────┘   └──────────────────┘
//
// Values are marshalled to JSON and upserted into a single
// storage_entries table keyed by (namespace, key). The schema is
// created by the embedded migrations.
//
// # Thread Safety
//
// Store is safe for concurrent use; SQLite serialises writers and the
// database package configures a busy timeout.
package storage
