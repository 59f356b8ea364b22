//go:build cgo_sqlite

package storage

import (
	_ "github.com/mattn/go-sqlite3" // CGO-accelerated SQLite driver, opt-in build
)

// driverName is the database/sql driver name registered for this build.
const driverName = "sqlite3"
