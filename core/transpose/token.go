package transpose

// Token is a parsed note or chord symbol.
type Token struct {
	Root       byte   // 'A'..'G'
	Accidental string // "", "#" or "b"
	Suffix     string // quality, extensions, slash bass; verbatim
}

// Name returns the root and accidental, e.g. "Bb".
func (t Token) Name() string {
	return string(t.Root) + t.Accidental
}

// String reassembles the token.
func (t Token) String() string {
	return t.Name() + t.Suffix
}

// ParseToken splits s into root, accidental and suffix. It reports false
// when s does not start with a root letter. The suffix is not validated.
func ParseToken(s string) (Token, bool) {
	if s == "" || !isRoot(s[0]) {
		return Token{}, false
	}

	tok := Token{Root: upper(s[0])}
	rest := s[1:]
	if rest != "" && isAccidental(rest[0]) {
		tok.Accidental = rest[:1]
		rest = rest[1:]
	}
	tok.Suffix = rest
	return tok, true
}

func isRoot(c byte) bool {
	return (c >= 'A' && c <= 'G') || (c >= 'a' && c <= 'g')
}

func isAccidental(c byte) bool {
	return c == '#' || c == 'b'
}

// isSeparator matches the bytes that end a token.
func isSeparator(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Span is the byte range [Start, End) of a token within a line.
type Span struct {
	Start int
	End   int
}

// Tokenize returns the spans of every token in line, left to right. Spans
// never overlap and each one extends to the next separator.
func Tokenize(line string) []Span {
	var spans []Span
	for i := 0; i < len(line); {
		if !isRoot(line[i]) {
			i++
			continue
		}
		end := tokenEnd(line, i)
		spans = append(spans, Span{Start: i, End: end})
		i = end
	}
	return spans
}

func tokenEnd(line string, start int) int {
	end := start + 1
	for end < len(line) && !isSeparator(line[end]) {
		end++
	}
	return end
}
