// Package history keeps a SQLite ledger of pipeline runs and the outcome of
// each stage, for `notesflow history`.
package history
