// Package pitch provides the twelve-tone pitch-class tables used to
// resolve and render note names.
package pitch

// Class is a pitch class in [0,12), indexed from C in the sharp table.
type Class int

// Spelling selects which enharmonic table renders a pitch class.
type Spelling int

const (
	// Sharps renders accidentals as sharps (C#, D#, ...).
	Sharps Spelling = iota
	// Flats renders accidentals as flats (Db, Eb, ...).
	Flats
)

// String returns the spelling name.
func (s Spelling) String() string {
	if s == Flats {
		return "flats"
	}
	return "sharps"
}

// Size is the number of pitch classes.
const Size = 12

var sharpNames = [Size]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = [Size]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}

// Spellings that appear in neither table.
var extraNames = map[string]Class{
	"E#": 5,  // F
	"B#": 0,  // C
	"Cb": 11, // B
	"Fb": 4,  // E
}

// SharpNames returns a copy of the sharp-spelling table.
func SharpNames() [Size]string {
	return sharpNames
}

// FlatNames returns a copy of the flat-spelling table.
func FlatNames() [Size]string {
	return flatNames
}

// Wrap normalizes any integer into [0,12).
func Wrap(i int) Class {
	return Class(((i % Size) + Size) % Size)
}

// NameToIndex resolves a note name such as "C#", "Bb" or "Fb" to its pitch
// class. Names are case-sensitive: the root letter must be upper-case.
func NameToIndex(name string) (Class, bool) {
	for i, n := range sharpNames {
		if n == name {
			return Class(i), true
		}
	}
	for i, n := range flatNames {
		if n == name {
			return Class(i), true
		}
	}
	c, ok := extraNames[name]
	return c, ok
}

// IndexToName wraps i into [0,12) and returns its name in the given spelling.
func IndexToName(i int, s Spelling) string {
	idx := Wrap(i)
	if s == Flats {
		return flatNames[idx]
	}
	return sharpNames[idx]
}

// Name returns the name of c in the given spelling.
func (c Class) Name(s Spelling) string {
	return IndexToName(int(c), s)
}

// Add shifts c by n semitones.
func (c Class) Add(n int) Class {
	return Wrap(int(c) + n)
}
