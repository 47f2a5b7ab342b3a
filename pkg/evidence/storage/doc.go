// Package storage provides evidence storage backends.
//
// Two backends implement evidence.Storage:
//
//   - SQLiteStorage persists records in a SQLite database. It works with
//     either the pure-Go modernc.org/sqlite driver ("sqlite", the default)
//     or the cgo github.com/mattn/go-sqlite3 driver ("sqlite3").
//   - MemoryStorage keeps records in a map. It is meant for tests and for
//     runs where evidence is disabled.
//
// Both backends validate queries with the query package and apply the
// same defaults: 100 records, newest decision first.
//
// # Schema
//
// Decision summaries are stored as indexed columns; the full trace is
// stored as JSON. Times are stored as Unix nanoseconds in UTC.
package storage
