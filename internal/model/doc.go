// Package model loads element definitions from YAML files and keeps
// registered listeners reconciled as those files change.
//
// # Architecture
//
//	┌──────────┐   ┌────────────────────┐   ┌──────────────────┐
//	│ Watcher  │──▶│     Repository     │──▶│    Listeners     │
//	│ fsnotify │   │ per-file snapshots │   │ (YAML providers  │
//	│ debounce │   │ diff by ModelKey   │   │  → registries)   │
//	└──────────┘   └────────────────────┘   └──────────────────┘
//
// A model is one YAML file under the watched directory; its relative
// path is the model name. Each file declares a format version and one
// map section per element kind ("items", "things", "rules", ...); the
// repository diffs every rewrite against the previous snapshot and
// tells each kind's listeners exactly what was added, updated or
// removed. Listeners that register late are replayed the full Added
// sequence. Programmatic edits flow the other way: the repository
// patches the raw YAML nodes and writes the file back atomically,
// leaving sections it does not understand untouched.
//
// # Key Types
//
//   - Repository: model cache, diffing, listener dispatch, write-back.
//   - Listener: per-kind parse and reconcile hooks.
//   - Watcher: recursive directory watch feeding the repository.
//   - YAMLItemProvider / YAMLThingProvider / YAMLRuleProvider: bridge
//     model sections into the matching registries.
//
// # Thread Safety
//
// Repository is safe for concurrent use; file processing and edits for
// all models are serialized by one lock. Listener notifications are
// delivered while that lock is held, so listeners must not call back
// into the repository.
package model
