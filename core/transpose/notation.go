package transpose

import (
	"strings"

	"github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/pitch"
)

// Notation selects how transposed roots are spelled.
type Notation string

const (
	// Auto spells with flats when the target prefers flats, sharps otherwise.
	Auto Notation = "auto"
	// Sharps always spells with sharps.
	Sharps Notation = "sharps"
	// Flats always spells with flats.
	Flats Notation = "flats"
)

// Notations lists the accepted notation values.
var Notations = []Notation{Auto, Sharps, Flats}

// ParseNotation converts user input into a Notation. The empty string maps
// to Auto.
func ParseNotation(s string) (Notation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Auto):
		return Auto, nil
	case string(Sharps), "sharp", "#":
		return Sharps, nil
	case string(Flats), "flat", "b":
		return Flats, nil
	}
	return "", &errors.ValidationError{
		Field:   "notation",
		Value:   s,
		Message: "must be one of auto, sharps, flats",
	}
}

// Spelling resolves the notation against the target's flat preference.
// Unknown values behave like Auto.
func (n Notation) Spelling(preferTargetFlats bool) pitch.Spelling {
	switch n {
	case Sharps:
		return pitch.Sharps
	case Flats:
		return pitch.Flats
	}
	if preferTargetFlats {
		return pitch.Flats
	}
	return pitch.Sharps
}
