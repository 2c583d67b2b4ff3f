package cache

import (
	"testing"

	"github.com/FocuswithJustin/chordshift/core/transpose"
)

func TestResultKey(t *testing.T) {
	base := transpose.Request{Semitones: 2, PreferFlats: true, Notation: transpose.Auto}
	k := ResultKey("C F G", base)

	if len(k) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(k))
	}
	if ResultKey("C F G", base) != k {
		t.Error("ResultKey is not deterministic")
	}

	same := []transpose.Request{
		{Semitones: 14, PreferFlats: true, Notation: transpose.Auto},
		{Semitones: -10, PreferFlats: false, Notation: transpose.Flats},
	}
	for _, req := range same {
		if ResultKey("C F G", req) != k {
			t.Errorf("ResultKey(%+v) should equal key for %+v", req, base)
		}
	}

	different := []struct {
		text string
		req  transpose.Request
	}{
		{"C F G ", base},
		{"C F G", transpose.Request{Semitones: 3, PreferFlats: true}},
		{"C F G", transpose.Request{Semitones: 2, Notation: transpose.Sharps}},
	}
	for _, d := range different {
		if ResultKey(d.text, d.req) == k {
			t.Errorf("ResultKey(%q, %+v) collides with base", d.text, d.req)
		}
	}
}
