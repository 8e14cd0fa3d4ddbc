// Package harstore owns the per-challenge-kind HAR evidence files and
// watches them for external modification.
//
// For each challenge kind the registry resolves an evidence file path
// (explicit configuration wins, otherwise a fixed filename under the home
// directory), bootstraps the file, and tracks a freshness flag: whether
// the file is currently believed to hold usable content. A filesystem
// watcher flips the flag when the file is written and notifies the
// invalidation callback so derived artifacts tied to the stale content
// are discarded.
//
// Reads take a shared lock and never touch the filesystem; the watch
// dispatcher is the only writer during steady state.
package harstore
