// Package all wires all built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) causes the init functions of each concrete storage backend to run,
// which in turn register their factories with the storage package.
//
// Importing this package makes the following storage kinds available at
// runtime:
//
//   - "postgres" (yelpetl/internal/storage/postgres)
//   - "sqlite"   (yelpetl/internal/storage/sqlite)
//
// Typical usage (in cmd/pipeline or a similar wiring layer):
//
//	import _ "yelpetl/internal/storage/all" // enable all built-in backends
//
// after which storage.New(ctx, storage.Config{Kind: ..., DSN: ...}) resolves
// any of the kinds above while the caller stays backend-agnostic.
package all

import (
	_ "yelpetl/internal/storage/postgres"
	_ "yelpetl/internal/storage/sqlite"
)
