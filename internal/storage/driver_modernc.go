//go:build !cgo_sqlite

package storage

import (
	_ "modernc.org/sqlite" // pure-Go SQLite driver, default build
)

// driverName is the database/sql driver name registered for this build.
// The pure-Go modernc.org/sqlite driver is the default so arbor cross-
// compiles and runs without CGO; build with -tags cgo_sqlite to switch to
// the CGO-accelerated mattn/go-sqlite3 driver instead.
const driverName = "sqlite"
