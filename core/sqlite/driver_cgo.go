//go:build cgo_sqlite

package sqlite

import (
	sqliteexternal "github.com/FocuswithJustin/chordshift/contrib/sqlite-external"
)

const (
	driverName    = sqliteexternal.DriverName
	driverType    = sqliteexternal.DriverType
	driverPackage = sqliteexternal.DriverPackage + " (via contrib/sqlite-external)"
)

func busyTimeoutParam(ms int) string {
	return sqliteexternal.BusyTimeoutParam(ms)
}
