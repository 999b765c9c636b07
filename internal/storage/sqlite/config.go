// Package sqlite implements the load engine's repository on database/sql with
// the pure-Go modernc driver. Batches land as prepared INSERTs inside one
// transaction per batch.
package sqlite

// Config holds SQLite repository configuration derived from storage.Config.
type Config struct {
	// DSN is a SQLite connection string or file path, e.g.:
	//   "file:oulad.db?cache=shared"
	//   "oulad.db" (interpreted by the driver)
	DSN string
}
