// Package sqlite opens catalog databases with whichever SQLite driver the
// binary was built with.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO_ENABLED=1 -tags cgo_sqlite: mattn/go-sqlite3 via contrib/sqlite-external
//
// Always go through Open or OpenReadOnly rather than sql.Open so the DSN
// parameters match the linked driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
)

// BusyTimeoutMillis is how long a writer waits on a lock held elsewhere.
const BusyTimeoutMillis = 5000

// DriverName returns the database/sql driver name.
func DriverName() string {
	return driverName
}

// DriverType returns "cgo" for mattn/go-sqlite3 and "purego" for
// modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO reports whether the CGO driver is linked in.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens path for reading and writing, creating it if needed.
func Open(path string) (*sql.DB, error) {
	return open(path, "rwc")
}

// OpenReadOnly opens an existing database without write access.
func OpenReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return open(path, "ro")
}

// uriEscaper escapes the bytes that end or alter the path of a SQLite
// file: URI. SQLite decodes %HH escapes in the path.
var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// DSN returns the file: URI used to open path in mode ("ro" or "rwc").
func DSN(path, mode string) string {
	return fmt.Sprintf("file:%s?mode=%s&%s", uriEscaper.Replace(path), mode, busyTimeoutParam(BusyTimeoutMillis))
}

func open(path, mode string) (*sql.DB, error) {
	dsn := DSN(path, mode)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	// Catalog files are tiny; one connection keeps pragmas and
	// transactions on the same handle.
	db.SetMaxOpenConns(1)
	return db, nil
}

// Info describes the linked SQLite driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the linked driver's details for version output and /health.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
