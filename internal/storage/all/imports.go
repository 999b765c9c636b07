// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package.
//
// In other words, importing this package makes the following storage kinds
// available at runtime:
//
//   - "postgres" (ouladload/internal/storage/postgres)
//   - "sqlite"   (ouladload/internal/storage/sqlite)
//   - "mysql"    (ouladload/internal/storage/mysql)
//   - "mssql"    (ouladload/internal/storage/mssql)
//
// Typical usage (in cmd/ouladload/main.go or a similar wiring layer):
//
//	import (
//	    _ "ouladload/internal/storage/all" // enable all built-in backends
//	)
//
//	repo, err := storage.New(ctx, storage.Config{
//	    Kind: p.Storage.Kind,
//	    DSN:  p.Storage.DB.DSN,
//	})
//
// This pattern keeps backend-specific wiring in a single, small package and
// allows the rest of the application (engine, transforms, CLI) to depend only
// on the storage abstraction rather than individual backends.
//
// Note: if you want a binary that supports only a subset of backends, define
// an alternative wiring package that imports only the required ones.
package all

import (
	_ "ouladload/internal/storage/mssql"
	_ "ouladload/internal/storage/mysql"
	_ "ouladload/internal/storage/postgres"
	_ "ouladload/internal/storage/sqlite"
)
