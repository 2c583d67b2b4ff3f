package cache

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"

	"github.com/FocuswithJustin/chordshift/core/pitch"
	"github.com/FocuswithJustin/chordshift/core/transpose"
)

// ResultKey returns a BLAKE3 digest identifying the output of transposing
// text with req. Requests that differ only by whole octaves, or by a
// notation that resolves to the same spelling, share a key.
func ResultKey(text string, req transpose.Request) string {
	h := blake3.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(pitch.Wrap(req.Semitones)))
	h.Write(buf[:])
	if req.Spelling() == pitch.Flats {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	h.Write([]byte(text))

	return hex.EncodeToString(h.Sum(nil))
}
