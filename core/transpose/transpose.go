package transpose

import (
	"strings"

	"github.com/FocuswithJustin/chordshift/core/pitch"
)

// TransposeSingleEntry shifts the root of one token by semitones and
// re-spells it. Input that does not parse or resolve is returned unchanged.
func TransposeSingleEntry(token string, semitones int, preferTargetFlats bool, notation Notation) string {
	tok, ok := ParseToken(token)
	if !ok {
		return token
	}
	class, ok := pitch.NameToIndex(tok.Name())
	if !ok {
		return token
	}

	return class.Add(semitones).Name(notation.Spelling(preferTargetFlats)) + tok.Suffix
}

// TransposeLine applies TransposeSingleEntry to every token in line and
// copies all other bytes through.
func TransposeLine(line string, semitones int, preferTargetFlats bool, notation Notation) string {
	spans := Tokenize(line)
	if len(spans) == 0 {
		return line
	}

	var sb strings.Builder
	sb.Grow(len(line) + len(spans))

	prev := 0
	for _, sp := range spans {
		sb.WriteString(line[prev:sp.Start])
		sb.WriteString(TransposeSingleEntry(line[sp.Start:sp.End], semitones, preferTargetFlats, notation))
		prev = sp.End
	}
	sb.WriteString(line[prev:])
	return sb.String()
}

// Request bundles the parameters of one transposition.
type Request struct {
	Semitones   int      `json:"semitones"`
	PreferFlats bool     `json:"prefer_flats"`
	Notation    Notation `json:"notation"`
}

// Entry transposes a single token.
func (r Request) Entry(token string) string {
	return TransposeSingleEntry(token, r.Semitones, r.PreferFlats, r.Notation)
}

// Line transposes a single line.
func (r Request) Line(line string) string {
	return TransposeLine(line, r.Semitones, r.PreferFlats, r.Notation)
}

// Spelling reports the spelling this request renders with.
func (r Request) Spelling() pitch.Spelling {
	return r.Notation.Spelling(r.PreferFlats)
}

// IsIdentity reports whether the request leaves pitch classes unchanged.
// Spelling may still change, e.g. "Db" renders as "C#" under Sharps.
func (r Request) IsIdentity() bool {
	return pitch.Wrap(r.Semitones) == 0
}
