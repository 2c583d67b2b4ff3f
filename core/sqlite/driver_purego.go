//go:build !cgo_sqlite

package sqlite

import (
	"fmt"

	_ "modernc.org/sqlite"
)

const (
	driverName    = "sqlite"
	driverType    = "purego"
	driverPackage = "modernc.org/sqlite"
)

func busyTimeoutParam(ms int) string {
	return fmt.Sprintf("_pragma=busy_timeout(%d)", ms)
}
