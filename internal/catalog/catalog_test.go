package catalog

import (
	"errors"
	"testing"

	cserrors "github.com/FocuswithJustin/chordshift/core/errors"
	"github.com/FocuswithJustin/chordshift/core/shift"
	"github.com/FocuswithJustin/chordshift/core/transpose"
)

func TestDefault(t *testing.T) {
	c := Default()

	if got := len(c.Instruments()); got != 4 {
		t.Errorf("len(Instruments()) = %d, want 4", got)
	}
	if got := len(c.Keys()); got != 12 {
		t.Errorf("len(Keys()) = %d, want 12", got)
	}

	for i, k := range c.Keys() {
		if k.Semitones != i {
			t.Errorf("key %s has semitones %d, want %d", k.Name, k.Semitones, i)
		}
	}
}

func TestInstrumentsReturnsCopy(t *testing.T) {
	c := Default()
	list := c.Instruments()
	list[0].Semitones = 99

	inst, err := c.Instrument("C")
	if err != nil {
		t.Fatalf("Instrument(C) error: %v", err)
	}
	if inst.Semitones != 0 {
		t.Error("mutating the returned slice changed the catalog")
	}
}

func TestInstrumentLookup(t *testing.T) {
	c := Default()

	inst, err := c.Instrument("bb")
	if err != nil {
		t.Fatalf("Instrument(bb) error: %v", err)
	}
	if inst.ID != "Bb" {
		t.Errorf("Instrument(bb).ID = %q, want Bb", inst.ID)
	}

	_, err = c.Instrument("D")
	var nf *cserrors.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Instrument(D) error = %v, want NotFoundError", err)
	}
	if nf.Resource != "instrument" || nf.ID != "D" {
		t.Errorf("NotFoundError = %+v", nf)
	}
}

func TestKeyLookup(t *testing.T) {
	c := Default()

	tests := []struct {
		name string
		want string
	}{
		{"D", "D"},
		{"Db", "Db"},
		{"C#", "Db"},
		{"A#", "Bb"},
		{"Cb", "B"},
		{"E#", "F"},
		{"db", "Db"},
		{"bb", "Bb"},
		{"c#", "Db"},
		{"g", "G"},
	}

	for _, tt := range tests {
		k, err := c.Key(tt.name)
		if err != nil {
			t.Errorf("Key(%q) error: %v", tt.name, err)
			continue
		}
		if k.Name != tt.want {
			t.Errorf("Key(%q) = %q, want %q", tt.name, k.Name, tt.want)
		}
	}

	if _, err := c.Key("H"); !errors.Is(err, cserrors.ErrNotFound) {
		t.Errorf("Key(H) error = %v, want ErrNotFound", err)
	}
}

func TestByInstruments(t *testing.T) {
	c := Default()

	tests := []struct {
		from, to    string
		semitones   int
		preferFlats bool
	}{
		{"C", "Bb", 2, true},
		{"Bb", "C", -2, false},
		{"C", "Eb", -3, true},
		{"Bb", "Eb", -5, true},
		{"Eb", "F", -2, true},
		{"F", "F", 0, true},
	}

	for _, tt := range tests {
		req, err := c.ByInstruments(tt.from, tt.to, transpose.Auto)
		if err != nil {
			t.Errorf("ByInstruments(%s, %s) error: %v", tt.from, tt.to, err)
			continue
		}
		if req.Semitones != tt.semitones || req.PreferFlats != tt.preferFlats {
			t.Errorf("ByInstruments(%s, %s) = %+v, want semitones=%d prefer_flats=%v",
				tt.from, tt.to, req, tt.semitones, tt.preferFlats)
		}
	}
}

func TestByInstrumentsTransposes(t *testing.T) {
	req, err := Default().ByInstruments("C", "Bb", transpose.Auto)
	if err != nil {
		t.Fatal(err)
	}
	if got := req.Line("C F G7 C"); got != "D G A7 D" {
		t.Errorf("C -> Bb = %q, want %q", got, "D G A7 D")
	}
	if got := req.Line("F Bb C7"); got != "G C D7" {
		t.Errorf("C -> Bb = %q, want %q", got, "G C D7")
	}
}

func TestByKeys(t *testing.T) {
	c := Default()

	req, err := c.ByKeys("C", "Eb", transpose.Auto)
	if err != nil {
		t.Fatal(err)
	}
	if req.Semitones != 3 || !req.PreferFlats {
		t.Errorf("ByKeys(C, Eb) = %+v", req)
	}
	if got := req.Line("C Am F G7"); got != "Eb Cm Ab Bb7" {
		t.Errorf("C -> Eb = %q", got)
	}

	req, err = c.ByKeys("F", "D", transpose.Auto)
	if err != nil {
		t.Fatal(err)
	}
	if req.Semitones != -3 || req.PreferFlats {
		t.Errorf("ByKeys(F, D) = %+v", req)
	}
	if got := req.Line("F Bb C7"); got != "D G A7" {
		t.Errorf("F -> D = %q", got)
	}
}

func TestMissingSelection(t *testing.T) {
	c := Default()

	for _, pair := range [][2]string{{"", "Bb"}, {"C", ""}, {" ", " "}} {
		_, err := c.ByInstruments(pair[0], pair[1], transpose.Auto)
		var ve *cserrors.ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("ByInstruments(%q, %q) error = %v, want ValidationError", pair[0], pair[1], err)
		}
		if _, err := c.ByKeys(pair[0], pair[1], transpose.Auto); !errors.Is(err, cserrors.ErrInvalidInput) {
			t.Errorf("ByKeys(%q, %q) error = %v, want ErrInvalidInput", pair[0], pair[1], err)
		}
	}
}

func TestResolve(t *testing.T) {
	c := Default()

	tests := []struct {
		input string
		want  transpose.Request
	}{
		{"+3", transpose.Request{Semitones: 3, Notation: transpose.Sharps}},
		{"-1 flats", transpose.Request{Semitones: -1, PreferFlats: true, Notation: transpose.Sharps}},
		{"C -> Bb", transpose.Request{Semitones: 2, PreferFlats: true, Notation: transpose.Sharps}},
		{"key A -> Ab", transpose.Request{Semitones: -1, PreferFlats: true, Notation: transpose.Sharps}},
	}

	for _, tt := range tests {
		expr, err := shift.Parse(tt.input)
		if err != nil {
			t.Fatalf("shift.Parse(%q) error: %v", tt.input, err)
		}
		got, err := c.Resolve(expr, transpose.Sharps)
		if err != nil {
			t.Errorf("Resolve(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %+v, want %+v", tt.input, got, tt.want)
		}
	}

	if _, err := c.Resolve(nil, transpose.Auto); !errors.Is(err, cserrors.ErrInvalidInput) {
		t.Errorf("Resolve(nil) error = %v, want ErrInvalidInput", err)
	}
}

func TestNewRejectsDuplicates(t *testing.T) {
	_, err := New([]Instrument{{ID: "Bb"}, {ID: "BB"}}, nil)
	if !errors.Is(err, cserrors.ErrInvalidInput) {
		t.Errorf("duplicate instruments error = %v", err)
	}

	_, err = New(nil, []Key{{Name: "C"}, {Name: ""}})
	if !errors.Is(err, cserrors.ErrInvalidInput) {
		t.Errorf("empty key name error = %v", err)
	}
}
