package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDriverInfo(t *testing.T) {
	info := GetInfo()

	if info.DriverName == "" {
		t.Error("DriverName should not be empty")
	}
	if info.Package == "" {
		t.Error("Package should not be empty")
	}
	if info.DriverName != DriverName() {
		t.Errorf("DriverName mismatch: info=%s, func=%s", info.DriverName, DriverName())
	}
	if info.DriverType != DriverType() {
		t.Errorf("DriverType mismatch: info=%s, func=%s", info.DriverType, DriverType())
	}
	if info.IsCGO != IsCGO() {
		t.Errorf("IsCGO mismatch: info=%v, func=%v", info.IsCGO, IsCGO())
	}

	t.Logf("SQLite driver: %s (%s) from %s", info.DriverName, info.DriverType, info.Package)
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO test (value) VALUES (?)`, "Bb"); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}

	var value string
	if err := db.QueryRow(`SELECT value FROM test WHERE id = 1`).Scan(&value); err != nil {
		t.Fatalf("failed to query: %v", err)
	}
	if value != "Bb" {
		t.Errorf("value = %q, want Bb", value)
	}
}

func TestOpenReadOnly(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "ro.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	db.Close()

	ro, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatalf("failed to open read-only: %v", err)
	}
	defer ro.Close()

	var n int
	if err := ro.QueryRow(`SELECT COUNT(*) FROM test`).Scan(&n); err != nil {
		t.Fatalf("read-only query failed: %v", err)
	}
	if _, err := ro.Exec(`INSERT INTO test (id) VALUES (1)`); err == nil {
		t.Error("expected write to read-only database to fail")
	}
}

func TestDriverTypeConsistency(t *testing.T) {
	switch DriverType() {
	case "purego":
		if IsCGO() {
			t.Error("purego driver reports IsCGO")
		}
	case "cgo":
		if !IsCGO() {
			t.Error("cgo driver does not report IsCGO")
		}
	default:
		t.Errorf("unknown driver type %q", DriverType())
	}
}

func TestOpenReadOnlyMissing(t *testing.T) {
	if _, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db")); err == nil {
		t.Error("expected error opening a missing database read-only")
	}
}

func TestBusyTimeoutParam(t *testing.T) {
	p := busyTimeoutParam(BusyTimeoutMillis)
	if !strings.Contains(p, "5000") {
		t.Errorf("busyTimeoutParam = %q", p)
	}
}

func TestDSNEscapesPath(t *testing.T) {
	dsn := DSN("/charts/F#-horn?.db", "ro")
	if !strings.HasPrefix(dsn, "file:/charts/F%23-horn%3f.db?mode=ro&") {
		t.Errorf("DSN = %q", dsn)
	}
}

func TestOpenPathWithURIMetacharacters(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "F#-horn 100%.db")

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE test (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	db.Close()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || entries[0].Name() != "F#-horn 100%.db" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("created files = %v", names)
	}

	ro, err := OpenReadOnly(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer ro.Close()
	var n int
	if err := ro.QueryRow(`SELECT COUNT(*) FROM test`).Scan(&n); err != nil {
		t.Fatalf("read-only query failed: %v", err)
	}
}
