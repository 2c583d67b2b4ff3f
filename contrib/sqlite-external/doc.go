// Package sqliteexternal links the CGO SQLite driver (github.com/mattn/go-sqlite3)
// into chordshift when the cgo_sqlite build tag is set.
//
// core/sqlite imports it automatically under that tag, so catalog files are
// read and written through the reference C SQLite:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./cmd/chordshift
//
// Without the tag the package is empty and core/sqlite falls back to the
// pure Go modernc.org/sqlite driver, which needs no C toolchain and
// cross-compiles.
package sqliteexternal
