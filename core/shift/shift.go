// Package shift parses textual transposition selections such as
// "Bb -> Eb", "key D to F" or "+3".
package shift

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/chordshift/core/errors"
)

// Kind identifies how an expression selects its semitone offset.
type Kind int

const (
	// Offset is a literal signed semitone count.
	Offset Kind = iota
	// Instruments selects an origin and target transposing instrument.
	Instruments
	// Keys selects an origin and target concert key.
	Keys
)

// String returns the kind name used in logs and API payloads.
func (k Kind) String() string {
	switch k {
	case Instruments:
		return "instruments"
	case Keys:
		return "keys"
	}
	return "offset"
}

// Expr is a parsed shift expression.
type Expr struct {
	Kind Kind `json:"kind"`

	// Semitones and PreferFlats are set for Offset expressions.
	Semitones   int  `json:"semitones,omitempty"`
	PreferFlats bool `json:"prefer_flats,omitempty"`

	// From and To are catalog identifiers for Instruments and Keys.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// String renders the expression in its canonical form.
func (e *Expr) String() string {
	switch e.Kind {
	case Instruments:
		return e.From + " -> " + e.To
	case Keys:
		return "key " + e.From + " -> " + e.To
	}
	s := fmt.Sprintf("%+d", e.Semitones)
	if e.PreferFlats {
		s += " flats"
	}
	return s
}

// shiftGrammar is the participle grammar for shift expressions.
// Examples: "+3", "-2 flats", "Bb -> Eb", "instrument C to F", "key D -> Bb"
//
//nolint:govet // participle grammar tags are not standard struct tags
type shiftGrammar struct {
	Offset *offsetPart `  @@`
	Pair   *pairPart   `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type offsetPart struct {
	Sign     string `@("+" | "-")?`
	Value    int    `@Int`
	Spelling string `@("flats" | "sharps")?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type pairPart struct {
	Kind string `@("key" | "keys" | "instrument" | "instruments")?`
	From string `@Word`
	To   string `( Arrow | "to" ) @Word`
}

// shiftLexer defines the lexer for shift expressions.
// Arrow must precede Punct so "->" is not split into "-" and ">".
var shiftLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Arrow", Pattern: `->|=>|→`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Word", Pattern: `[A-Za-z][A-Za-z0-9#_]*`},
	{Name: "Punct", Pattern: `[+\-]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// shiftParser is the participle parser for shift expressions.
var shiftParser = participle.MustBuild[shiftGrammar](
	participle.Lexer(shiftLexer),
	participle.Elide("Whitespace"),
	participle.CaseInsensitive("Word"),
)

// Parse parses a shift expression.
//
// Supported forms:
//   - "+3", "-2", "5" (semitones; optional trailing "flats" or "sharps")
//   - "Bb -> Eb", "C to F" (instrument pair)
//   - "instrument Bb -> C" (explicit instrument pair)
//   - "key D -> F" (concert key pair)
func Parse(s string) (*Expr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.NewValidation("shift", "empty shift expression")
	}

	parsed, err := shiftParser.ParseString("", s)
	if err != nil {
		return nil, &errors.ParseError{
			Format:  "shift expression",
			Input:   s,
			Message: err.Error(),
			Err:     errors.ErrInvalidInput,
		}
	}

	if parsed.Offset != nil {
		n := parsed.Offset.Value
		if parsed.Offset.Sign == "-" {
			n = -n
		}
		return &Expr{
			Kind:        Offset,
			Semitones:   n,
			PreferFlats: strings.EqualFold(parsed.Offset.Spelling, "flats"),
		}, nil
	}

	expr := &Expr{
		Kind: Instruments,
		From: parsed.Pair.From,
		To:   parsed.Pair.To,
	}
	if strings.HasPrefix(strings.ToLower(parsed.Pair.Kind), "key") {
		expr.Kind = Keys
	}
	return expr, nil
}
