package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS instruments (
	id            TEXT PRIMARY KEY,
	label         TEXT NOT NULL DEFAULT '',
	semitones     INTEGER NOT NULL,
	prefers_flats INTEGER NOT NULL DEFAULT 0,
	position      INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS concert_keys (
	name          TEXT PRIMARY KEY,
	semitones     INTEGER NOT NULL,
	prefers_flats INTEGER NOT NULL DEFAULT 0,
	position      INTEGER NOT NULL DEFAULT 0
);
`

// LoadSQLite reads a catalog from a SQLite database written by SaveSQLite
// or by hand with the same schema.
func LoadSQLite(ctx context.Context, path string) (*Catalog, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer db.Close()

	instruments, err := loadInstruments(ctx, db)
	if err != nil {
		return nil, errors.Wrapf(err, "load instruments from %s", path)
	}
	keys, err := loadKeys(ctx, db)
	if err != nil {
		return nil, errors.Wrapf(err, "load keys from %s", path)
	}
	if len(instruments) == 0 && len(keys) == 0 {
		return nil, &errors.ValidationError{Field: "catalog", Value: path, Message: "database has no instruments or keys"}
	}

	return New(instruments, keys)
}

func loadInstruments(ctx context.Context, db *sql.DB) ([]Instrument, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, label, semitones, prefers_flats FROM instruments ORDER BY position, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		var inst Instrument
		if err := rows.Scan(&inst.ID, &inst.Label, &inst.Semitones, &inst.PrefersFlats); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func loadKeys(ctx context.Context, db *sql.DB) ([]Key, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name, semitones, prefers_flats FROM concert_keys ORDER BY position, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Name, &k.Semitones, &k.PrefersFlats); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// SaveSQLite writes the catalog to path, replacing any rows already there.
func SaveSQLite(ctx context.Context, path string, c *Catalog) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM instruments`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM concert_keys`); err != nil {
		return err
	}

	for i, inst := range c.instruments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO instruments (id, label, semitones, prefers_flats, position) VALUES (?, ?, ?, ?, ?)`,
			inst.ID, inst.Label, inst.Semitones, inst.PrefersFlats, i); err != nil {
			return fmt.Errorf("failed to insert instrument %s: %w", inst.ID, err)
		}
	}
	for i, k := range c.keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO concert_keys (name, semitones, prefers_flats, position) VALUES (?, ?, ?, ?)`,
			k.Name, k.Semitones, k.PrefersFlats, i); err != nil {
			return fmt.Errorf("failed to insert key %s: %w", k.Name, err)
		}
	}

	return tx.Commit()
}
