// Package transpose shifts note and chord symbols by a number of semitones.
//
// # Tokens
//
// A token is a maximal run of non-whitespace bytes that starts with a root
// letter A-G (either case). It splits into three parts:
//
//   - Root: the letter, normalized to upper case
//   - Accidental: a single "#" or "b" directly after the root, or nothing
//   - Suffix: everything else, carried through verbatim
//
// Only the root and accidental are transposed. "C#7sus4" shifted up one
// semitone becomes "D7sus4"; the bass of a slash chord such as "C/G" is part
// of the suffix and is left as written.
//
// # Pass-through
//
// Nothing in this package returns an error. A token whose root cannot be
// parsed (for example "H7") is returned byte-for-byte, and every byte
// outside a token is copied unchanged, so lyrics, bar lines and section
// labels survive a transposition.
//
// # Example
//
//	out := transpose.TransposeLine("| Am  F | G  C |", 2, true, transpose.Auto)
//	// out == "| Bm  G | A  D |"
package transpose
