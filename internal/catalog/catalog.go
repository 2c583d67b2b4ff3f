// Package catalog holds the transposing instruments and concert keys a user
// can choose from, and turns a pair of them into a transposition request.
package catalog

import (
	"strings"

	"github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/pitch"
	"github.com/FocuswithJustin/chordshift/core/shift"
	"github.com/FocuswithJustin/chordshift/core/transpose"
)

// Instrument is a transposing-instrument profile.
type Instrument struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Semitones    int    `json:"semitones"` // written pitch relative to concert
	PrefersFlats bool   `json:"prefers_flats"`
}

// Key is a concert key.
type Key struct {
	Name         string `json:"name"`
	Semitones    int    `json:"semitones"` // pitch class of the tonic
	PrefersFlats bool   `json:"prefers_flats"`
}

var defaultInstruments = []Instrument{
	{ID: "C", Label: "C / Concert (piano, flute)", Semitones: 0},
	{ID: "Bb", Label: "Bb (trumpet, Bb clarinet)", Semitones: 2, PrefersFlats: true},
	{ID: "Eb", Label: "Eb (alto sax, baritone sax)", Semitones: -3, PrefersFlats: true},
	{ID: "F", Label: "F (French horn)", Semitones: -5, PrefersFlats: true},
}

var defaultKeys = []Key{
	{Name: "C", Semitones: 0},
	{Name: "Db", Semitones: 1, PrefersFlats: true},
	{Name: "D", Semitones: 2},
	{Name: "Eb", Semitones: 3, PrefersFlats: true},
	{Name: "E", Semitones: 4},
	{Name: "F", Semitones: 5, PrefersFlats: true},
	{Name: "Gb", Semitones: 6, PrefersFlats: true},
	{Name: "G", Semitones: 7},
	{Name: "Ab", Semitones: 8, PrefersFlats: true},
	{Name: "A", Semitones: 9},
	{Name: "Bb", Semitones: 10, PrefersFlats: true},
	{Name: "B", Semitones: 11},
}

// Catalog is an immutable set of instruments and keys.
type Catalog struct {
	instruments []Instrument
	keys        []Key
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New(defaultInstruments, defaultKeys)
	if err != nil {
		panic("catalog: invalid built-in catalog: " + err.Error())
	}
	return c
}

// New builds a catalog, rejecting empty or duplicate identifiers.
func New(instruments []Instrument, keys []Key) (*Catalog, error) {
	seen := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		id := strings.TrimSpace(inst.ID)
		if id == "" {
			return nil, errors.NewValidation("instrument.id", "must not be empty")
		}
		if seen[strings.ToLower(id)] {
			return nil, &errors.ValidationError{Field: "instrument.id", Value: id, Message: "duplicate instrument"}
		}
		seen[strings.ToLower(id)] = true
	}

	seen = make(map[string]bool, len(keys))
	for _, k := range keys {
		name := strings.TrimSpace(k.Name)
		if name == "" {
			return nil, errors.NewValidation("key.name", "must not be empty")
		}
		if seen[strings.ToLower(name)] {
			return nil, &errors.ValidationError{Field: "key.name", Value: name, Message: "duplicate key"}
		}
		seen[strings.ToLower(name)] = true
	}

	return &Catalog{
		instruments: append([]Instrument(nil), instruments...),
		keys:        append([]Key(nil), keys...),
	}, nil
}

// Instruments returns the instruments in display order.
func (c *Catalog) Instruments() []Instrument {
	return append([]Instrument(nil), c.instruments...)
}

// Keys returns the concert keys in display order.
func (c *Catalog) Keys() []Key {
	return append([]Key(nil), c.keys...)
}

// Instrument looks up an instrument by ID. An exact match wins over a
// case-insensitive one.
func (c *Catalog) Instrument(id string) (Instrument, error) {
	id = strings.TrimSpace(id)
	for _, inst := range c.instruments {
		if inst.ID == id {
			return inst, nil
		}
	}
	for _, inst := range c.instruments {
		if strings.EqualFold(inst.ID, id) {
			return inst, nil
		}
	}
	return Instrument{}, errors.NewNotFound("instrument", id)
}

// Key looks up a concert key by name. An exact match wins over a
// case-insensitive one. Enharmonic spellings that are not in the catalog
// ("C#" for "Db") resolve to the key with the same pitch class; the root
// letter may be lower case ("db").
func (c *Catalog) Key(name string) (Key, error) {
	name = strings.TrimSpace(name)
	for _, k := range c.keys {
		if k.Name == name {
			return k, nil
		}
	}
	for _, k := range c.keys {
		if strings.EqualFold(k.Name, name) {
			return k, nil
		}
	}
	if class, ok := pitch.NameToIndex(upperRoot(name)); ok {
		for _, k := range c.keys {
			if pitch.Wrap(k.Semitones) == class {
				return k, nil
			}
		}
	}
	return Key{}, errors.NewNotFound("key", name)
}

// ByInstruments builds a request that rewrites music written for the origin
// instrument so it reads correctly on the target instrument.
func (c *Catalog) ByInstruments(from, to string, notation transpose.Notation) (transpose.Request, error) {
	if err := requirePair(from, to); err != nil {
		return transpose.Request{}, err
	}
	origin, err := c.Instrument(from)
	if err != nil {
		return transpose.Request{}, err
	}
	target, err := c.Instrument(to)
	if err != nil {
		return transpose.Request{}, err
	}
	return transpose.Request{
		Semitones:   target.Semitones - origin.Semitones,
		PreferFlats: target.PrefersFlats,
		Notation:    notation,
	}, nil
}

// ByKeys builds a request that moves music from one concert key to another.
func (c *Catalog) ByKeys(from, to string, notation transpose.Notation) (transpose.Request, error) {
	if err := requirePair(from, to); err != nil {
		return transpose.Request{}, err
	}
	origin, err := c.Key(from)
	if err != nil {
		return transpose.Request{}, err
	}
	target, err := c.Key(to)
	if err != nil {
		return transpose.Request{}, err
	}
	return transpose.Request{
		Semitones:   target.Semitones - origin.Semitones,
		PreferFlats: target.PrefersFlats,
		Notation:    notation,
	}, nil
}

// Resolve turns a parsed shift expression into a request.
func (c *Catalog) Resolve(expr *shift.Expr, notation transpose.Notation) (transpose.Request, error) {
	if expr == nil {
		return transpose.Request{}, errors.NewValidation("shift", "missing shift expression")
	}
	switch expr.Kind {
	case shift.Instruments:
		return c.ByInstruments(expr.From, expr.To, notation)
	case shift.Keys:
		return c.ByKeys(expr.From, expr.To, notation)
	}
	return transpose.Request{
		Semitones:   expr.Semitones,
		PreferFlats: expr.PreferFlats,
		Notation:    notation,
	}, nil
}

// upperRoot upper-cases the leading note letter of name, leaving the
// accidental alone so "db" reads as "Db" and not "DB".
func upperRoot(name string) string {
	if name == "" || name[0] < 'a' || name[0] > 'g' {
		return name
	}
	return string(name[0]-'a'+'A') + name[1:]
}

func requirePair(from, to string) error {
	if strings.TrimSpace(from) == "" {
		return errors.NewValidation("from", "select an origin")
	}
	if strings.TrimSpace(to) == "" {
		return errors.NewValidation("to", "select a target")
	}
	return nil
}
