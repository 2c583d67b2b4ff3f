//go:build cgo_sqlite

package sqliteexternal

import (
	"strconv"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql name registered by mattn/go-sqlite3.
	DriverName = "sqlite3"

	// DriverType identifies the CGO implementation.
	DriverType = "cgo"

	// DriverPackage is the import path of the driver.
	DriverPackage = "github.com/mattn/go-sqlite3"
)

// BusyTimeoutParam returns the DSN parameter mattn/go-sqlite3 uses for
// its busy timeout.
func BusyTimeoutParam(ms int) string {
	return "_busy_timeout=" + strconv.Itoa(ms)
}
